package main

import (
	"path/filepath"
	"testing"

	"parley/server/internal/store"
)

// cliDBSetup creates a temp directory with an initialized store and
// returns the database path.
func cliDBSetup(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "parley.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st.Close()
	return dbPath
}

func TestRunCLIUnknownSubcommand(t *testing.T) {
	if RunCLI([]string{"frobnicate"}, cliDBSetup(t)) {
		t.Error("unknown subcommand should not be handled")
	}
}

func TestRunCLINoArgs(t *testing.T) {
	if RunCLI(nil, cliDBSetup(t)) {
		t.Error("empty args should not be handled")
	}
}

// Numeric positional arguments are the port, not a subcommand.
func TestRunCLIPortArgIgnored(t *testing.T) {
	if RunCLI([]string{"9000"}, cliDBSetup(t)) {
		t.Error("a port argument should not be handled as a subcommand")
	}
}

func TestRunCLIVersion(t *testing.T) {
	if !RunCLI([]string{"version"}, cliDBSetup(t)) {
		t.Error("version should be handled")
	}
}

func TestRunCLIStatus(t *testing.T) {
	dbPath := cliDBSetup(t)
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if _, err := st.Register("alice", "password1", "a@b.cd"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	st.Close()

	if !RunCLI([]string{"status"}, dbPath) {
		t.Error("status should be handled")
	}
}

func TestRunCLIUsersAndGroups(t *testing.T) {
	dbPath := cliDBSetup(t)
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	id, err := st.Register("alice", "password1", "a@b.cd")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := st.CreateGroup(id, "general"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	st.Close()

	if !RunCLI([]string{"users"}, dbPath) {
		t.Error("users should be handled")
	}
	if !RunCLI([]string{"groups"}, dbPath) {
		t.Error("groups should be handled")
	}
}
