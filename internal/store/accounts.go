package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Account field limits, matching the wire contract.
const (
	UsernameMin = 3
	UsernameMax = 32
	PasswordMin = 6
	PasswordMax = 128
	EmailMax    = 96
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validUsername(s string) bool {
	return len(s) >= UsernameMin && len(s) <= UsernameMax && usernameRe.MatchString(s)
}

func validPassword(s string) bool {
	if len(s) < PasswordMin || len(s) > PasswordMax {
		return false
	}
	return !strings.ContainsAny(s, " \t")
}

// validEmail is a trivial syntax check: something before '@', a '.'
// after it, nothing after the final '.', no whitespace anywhere.
func validEmail(s string) bool {
	if len(s) < 5 || len(s) > EmailMax || strings.ContainsAny(s, " \t") {
		return false
	}
	at := strings.Index(s, "@")
	if at <= 0 {
		return false
	}
	dot := strings.Index(s[at+1:], ".")
	if dot <= 0 {
		return false
	}
	return s[len(s)-1] != '.'
}

// Register validates the fields, rejects duplicate usernames, and
// persists a new account with a fresh salt and digest. User ids are
// assigned monotonically and never reused.
func (s *Store) Register(username, password, email string) (int64, error) {
	if !validUsername(username) || !validPassword(password) || !validEmail(email) {
		return 0, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing int64
	err := s.db.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&existing)
	switch {
	case err == nil:
		return 0, ErrExists
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("check username: %w", err)
	}

	salt, err := newSalt()
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO users (username, salt, digest, email, active) VALUES (?, ?, ?, ?, 1)`,
		username, salt, passwordDigest(salt, password), email,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read user id: %w", err)
	}
	return id, nil
}

// Authenticate verifies username/password against the stored salt and
// digest and returns the user id.
func (s *Store) Authenticate(username, password string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		id           int64
		salt, digest string
		active       int
	)
	err := s.db.QueryRow(
		`SELECT id, salt, digest, active FROM users WHERE username = ?`, username,
	).Scan(&id, &salt, &digest, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	if active == 0 {
		return 0, ErrInactive
	}
	if !verifyPassword(salt, digest, password) {
		return 0, ErrBadPassword
	}
	return id, nil
}

// UserID resolves a username to its id. Usernames are case-sensitive.
func (s *Store) UserID(username string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user id: %w", err)
	}
	return id, nil
}

// Username resolves a user id to its username.
func (s *Store) Username(id int64) (string, error) {
	var username string
	err := s.db.QueryRow(`SELECT username FROM users WHERE id = ?`, id).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup username: %w", err)
	}
	return username, nil
}

// UserCount returns the number of registered accounts.
func (s *Store) UserCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Usernames lists all registered usernames in id order.
func (s *Store) Usernames() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
