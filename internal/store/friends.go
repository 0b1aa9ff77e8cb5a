package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Friendship state machine. A pair of distinct users holds at most one
// edge: PENDING (directed, inviter recorded) or ACCEPTED (symmetric).
// REJECT and DELETE remove the edge entirely.

const (
	statePending  = "PENDING"
	stateAccepted = "ACCEPTED"
)

// edgeState reads the edge between two users. Returns sql.ErrNoRows
// via found=false when absent.
func (s *Store) edgeState(a, b int64) (state string, inviter int64, found bool, err error) {
	lo, hi := pairKey(a, b)
	err = s.db.QueryRow(
		`SELECT state, inviter FROM friends WHERE user_lo = ? AND user_hi = ?`, lo, hi,
	).Scan(&state, &inviter)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("read friend edge: %w", err)
	}
	return state, inviter, true, nil
}

// Invite records a PENDING edge from the caller to toUsername. Any
// existing edge, pending or accepted and in either direction, blocks a
// new invite.
func (s *Store) Invite(fromID int64, toUsername string) error {
	toID, err := s.UserID(toUsername)
	if err != nil {
		return err
	}
	if toID == fromID {
		return ErrSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, found, err := s.edgeState(fromID, toID)
	if err != nil {
		return err
	}
	if found {
		return ErrExists
	}

	lo, hi := pairKey(fromID, toID)
	_, err = s.db.Exec(
		`INSERT INTO friends (user_lo, user_hi, state, inviter, created_at) VALUES (?, ?, ?, ?, ?)`,
		lo, hi, statePending, fromID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// Accept promotes the PENDING edge from fromUsername to the caller.
func (s *Store) Accept(userID int64, fromUsername string) error {
	fromID, err := s.UserID(fromUsername)
	if err != nil {
		return err
	}
	if fromID == userID {
		return ErrSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, inviter, found, err := s.edgeState(userID, fromID)
	if err != nil {
		return err
	}
	if !found {
		return ErrInviteNotFound
	}
	if state == stateAccepted {
		return ErrAlreadyFriends
	}
	if inviter != fromID {
		// The pending invite runs the other way; the caller cannot
		// accept their own invite.
		return ErrInviteNotFound
	}

	lo, hi := pairKey(userID, fromID)
	if _, err := s.db.Exec(
		`UPDATE friends SET state = ? WHERE user_lo = ? AND user_hi = ?`,
		stateAccepted, lo, hi,
	); err != nil {
		return fmt.Errorf("promote invite: %w", err)
	}
	return nil
}

// Reject removes the PENDING edge from fromUsername to the caller.
func (s *Store) Reject(userID int64, fromUsername string) error {
	fromID, err := s.UserID(fromUsername)
	if err != nil {
		return err
	}
	if fromID == userID {
		return ErrSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, inviter, found, err := s.edgeState(userID, fromID)
	if err != nil {
		return err
	}
	if !found || state != statePending || inviter != fromID {
		return ErrInviteNotFound
	}

	lo, hi := pairKey(userID, fromID)
	if _, err := s.db.Exec(
		`DELETE FROM friends WHERE user_lo = ? AND user_hi = ?`, lo, hi,
	); err != nil {
		return fmt.Errorf("remove invite: %w", err)
	}
	return nil
}

// Pending lists usernames with a PENDING invite addressed to userID.
func (s *Store) Pending(userID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT u.username
		FROM friends f
		JOIN users u ON u.id = f.inviter
		WHERE f.state = ? AND f.inviter != ? AND (f.user_lo = ? OR f.user_hi = ?)
		ORDER BY f.created_at`,
		statePending, userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// Friends lists usernames holding an ACCEPTED edge with userID.
// Presence annotation is the caller's concern; the store knows nothing
// about sessions.
func (s *Store) Friends(userID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT u.username
		FROM friends f
		JOIN users u ON u.id = CASE WHEN f.user_lo = ? THEN f.user_hi ELSE f.user_lo END
		WHERE f.state = ? AND (f.user_lo = ? OR f.user_hi = ?)
		ORDER BY u.username`,
		userID, stateAccepted, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// DeleteFriend removes the ACCEPTED edge between the caller and
// otherUsername.
func (s *Store) DeleteFriend(userID int64, otherUsername string) error {
	otherID, err := s.UserID(otherUsername)
	if err != nil {
		return err
	}
	if otherID == userID {
		return ErrSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, _, found, err := s.edgeState(userID, otherID)
	if err != nil {
		return err
	}
	if !found || state != stateAccepted {
		return ErrFriendNotFound
	}

	lo, hi := pairKey(userID, otherID)
	if _, err := s.db.Exec(
		`DELETE FROM friends WHERE user_lo = ? AND user_hi = ?`, lo, hi,
	); err != nil {
		return fmt.Errorf("remove friend edge: %w", err)
	}
	return nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
