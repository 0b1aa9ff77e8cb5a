package store

import (
	"path/filepath"
	"testing"
)

// newMemStore opens an in-memory SQLite database, runs migrations, and
// returns the store. The database is discarded when the test exits.
func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// register is a fixture for the common "create a user" step.
func register(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.Register(username, "password1", username+"@example.com")
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return id
}

func TestMigrationsApplied(t *testing.T) {
	s := newMemStore(t)

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newMemStore(t)

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d rows after second migrate, got %d", len(migrations), count)
	}
}

func TestMsgIDRecoveredAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")
	gid, err := s.CreateGroup(alice, "room")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	id1, _, err := s.SendPM(alice, bob, "QQ==")
	if err != nil {
		t.Fatalf("SendPM: %v", err)
	}
	id2, _, err := s.SendGM(alice, gid, "Qg==")
	if err != nil {
		t.Fatalf("SendGM: %v", err)
	}
	if id2 != id1+1 {
		t.Errorf("ids should share one counter: pm=%d gm=%d", id1, id2)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	id3, _, err := s2.SendPM(alice, bob, "Qw==")
	if err != nil {
		t.Fatalf("SendPM after reopen: %v", err)
	}
	if id3 != id2+1 {
		t.Errorf("counter after reopen: got %d, want %d", id3, id2+1)
	}
}
