// Package store provides persistent server state backed by an embedded
// SQLite database: accounts, the friendship graph, groups and their
// membership, and the private/group message logs. It owns the database
// lifecycle and the global message-id counter.
//
// Migration design: SQL statements are kept in the [migrations] slice
// as ordered strings. Each is applied exactly once; the applied version
// is tracked in the schema_migrations table. To add a migration, append
// a new string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Domain errors. Handlers map these onto wire status codes.
var (
	ErrInvalid        = errors.New("invalid fields")
	ErrExists         = errors.New("already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrInactive       = errors.New("account inactive")
	ErrBadPassword    = errors.New("password mismatch")
	ErrSelf           = errors.New("operation targets self")
	ErrInviteNotFound = errors.New("invite not found")
	ErrFriendNotFound = errors.New("friend edge not found")
	ErrAlreadyFriends = errors.New("already friends")
	ErrGroupNotFound  = errors.New("group not found")
	ErrNotOwner       = errors.New("not group owner")
	ErrNotMember      = errors.New("not a group member")
	ErrMemberNotFound = errors.New("member not found")
	ErrOwnerLeave     = errors.New("owner cannot leave group")
)

var migrations = []string{
	// v1 — accounts
	`CREATE TABLE IF NOT EXISTS users (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		salt     TEXT NOT NULL,
		digest   TEXT NOT NULL,
		email    TEXT NOT NULL,
		active   INTEGER NOT NULL DEFAULT 1
	)`,
	// v2 — friendship edges, normalised so user_lo < user_hi
	`CREATE TABLE IF NOT EXISTS friends (
		user_lo    INTEGER NOT NULL,
		user_hi    INTEGER NOT NULL,
		state      TEXT NOT NULL CHECK(state IN ('PENDING','ACCEPTED')),
		inviter    INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_lo, user_hi)
	)`,
	// v3 — groups
	`CREATE TABLE IF NOT EXISTS groups (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		owner_id   INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	// v4 — group membership
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER NOT NULL,
		user_id  INTEGER NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
	// v5 — private message log, keyed by the unordered user pair
	`CREATE TABLE IF NOT EXISTS pm_messages (
		id      INTEGER PRIMARY KEY,
		pair_lo INTEGER NOT NULL,
		pair_hi INTEGER NOT NULL,
		from_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		ts      INTEGER NOT NULL,
		read    INTEGER NOT NULL DEFAULT 0
	)`,
	// v6
	`CREATE INDEX IF NOT EXISTS idx_pm_pair ON pm_messages(pair_lo, pair_hi, id)`,
	// v7 — group message log
	`CREATE TABLE IF NOT EXISTS gm_messages (
		id       INTEGER PRIMARY KEY,
		group_id INTEGER NOT NULL,
		from_id  INTEGER NOT NULL,
		content  TEXT NOT NULL,
		ts       INTEGER NOT NULL
	)`,
	// v8
	`CREATE INDEX IF NOT EXISTS idx_gm_group ON gm_messages(group_id, id)`,
	// v9 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps the SQLite database and the message-id counter. All
// mutations serialise on the store mutex so the counter and the logs
// stay consistent.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	nextMsgID int64
}

// Open opens (or creates) the database at path, applies pending
// migrations, and recovers the next message id from the union of the
// PM and GM logs. Use ":memory:" for ephemeral in-process storage
// (tests).
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("set busy_timeout", "err", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.recoverMsgID(); err != nil {
		db.Close()
		return nil, fmt.Errorf("recover message id: %w", err)
	}
	slog.Info("store opened", "path", path, "next_msg_id", s.nextMsgID)
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
	}
	return nil
}

// recoverMsgID seeds the counter so message ids stay strictly
// increasing across process restarts, shared between the PM and GM
// streams.
func (s *Store) recoverMsgID() error {
	var maxPM, maxGM int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM pm_messages`).Scan(&maxPM); err != nil {
		return err
	}
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM gm_messages`).Scan(&maxGM); err != nil {
		return err
	}
	s.nextMsgID = maxPM + 1
	if maxGM >= maxPM {
		s.nextMsgID = maxGM + 1
	}
	return nil
}

// allocMsgIDLocked hands out the next message id. Callers hold s.mu.
func (s *Store) allocMsgIDLocked() int64 {
	id := s.nextMsgID
	s.nextMsgID++
	return id
}

// pairKey returns the order-independent identity of a 1:1 conversation.
func pairKey(a, b int64) (lo, hi int64) {
	if a < b {
		return a, b
	}
	return b, a
}
