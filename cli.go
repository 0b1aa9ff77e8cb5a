package main

import (
	"fmt"
	"os"

	"parley/server/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("parley server %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "users":
		return cliUsers(dbPath)
	case "groups":
		return cliGroups(dbPath)
	default:
		return false
	}
}

func cliOpen(dbPath string) *store.Store {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliStatus(dbPath string) bool {
	st := cliOpen(dbPath)
	defer st.Close()

	users, _ := st.UserCount()
	groups, _ := st.GroupCount()
	messages, _ := st.MessageCount()
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Users: %d\n", users)
	fmt.Printf("Groups: %d\n", groups)
	fmt.Printf("Messages: %d\n", messages)
	fmt.Printf("Version: %s\n", Version)
	return true
}

func cliUsers(dbPath string) bool {
	st := cliOpen(dbPath)
	defer st.Close()

	names, err := st.Usernames()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("No users found.")
		return true
	}
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return true
}

func cliGroups(dbPath string) bool {
	st := cliOpen(dbPath)
	defer st.Close()

	groups, err := st.GroupList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(groups) == 0 {
		fmt.Println("No groups found.")
		return true
	}
	for _, g := range groups {
		fmt.Printf("  [%d] %s (owner: %s)\n", g.ID, g.Name, g.Owner)
	}
	return true
}
