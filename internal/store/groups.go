package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Groups are never deleted. The owner is always a member and is the
// only actor allowed to add or remove members; non-owners may leave.

// CreateGroup records a group owned by ownerID and adds the owner to
// its membership.
func (s *Store) CreateGroup(ownerID int64, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO groups (name, owner_id, created_at) VALUES (?, ?, ?)`,
		name, ownerID, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	gid, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read group id: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, gid, ownerID,
	); err != nil {
		return 0, fmt.Errorf("insert owner membership: %w", err)
	}
	return gid, nil
}

// GroupName returns the display name of a group.
func (s *Store) GroupName(groupID int64) (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM groups WHERE id = ?`, groupID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrGroupNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup group: %w", err)
	}
	return name, nil
}

// GroupExists reports whether a group id is known.
func (s *Store) GroupExists(groupID int64) (bool, error) {
	_, err := s.GroupName(groupID)
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsMember reports whether userID belongs to groupID.
func (s *Store) IsMember(userID, groupID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

func (s *Store) isOwner(userID, groupID int64) (bool, error) {
	var owner int64
	err := s.db.QueryRow(`SELECT owner_id FROM groups WHERE id = ?`, groupID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrGroupNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lookup group owner: %w", err)
	}
	return owner == userID, nil
}

// Groups lists the ids of every group containing userID.
func (s *Store) Groups(userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Members lists the usernames in groupID. Only members may look.
func (s *Store) Members(userID, groupID int64) ([]string, error) {
	if ok, err := s.GroupExists(groupID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrGroupNotFound
	}
	if ok, err := s.IsMember(userID, groupID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotMember
	}

	rows, err := s.db.Query(`
		SELECT u.username
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY u.id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// MemberIDs lists the user ids in groupID, for delivery fan-out.
func (s *Store) MemberIDs(groupID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddMember adds username to groupID. Only the owner may add.
func (s *Store) AddMember(actorID, groupID int64, username string) error {
	userID, err := s.UserID(username)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.isOwner(actorID, groupID)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotOwner
	}
	if member, err := s.IsMember(userID, groupID); err != nil {
		return err
	} else if member {
		return ErrExists
	}
	if _, err := s.db.Exec(
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, groupID, userID,
	); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// RemoveMember removes username from groupID and returns the removed
// user id so the caller can clear any live subscription. Only the
// owner may remove.
func (s *Store) RemoveMember(actorID, groupID int64, username string) (int64, error) {
	userID, err := s.UserID(username)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.isOwner(actorID, groupID)
	if err != nil {
		return 0, err
	}
	if !owner {
		return 0, ErrNotOwner
	}
	res, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("remove membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrMemberNotFound
	}
	return userID, nil
}

// LeaveGroup removes userID from groupID. The owner cannot leave a
// group they own.
func (s *Store) LeaveGroup(userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.isOwner(userID, groupID)
	if err != nil {
		return err
	}
	if owner {
		return ErrOwnerLeave
	}
	res, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotMember
	}
	return nil
}

// GroupCount returns the number of groups.
func (s *Store) GroupCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM groups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

// GroupInfo is a brief snapshot of a group, used by the CLI and the
// HTTP API.
type GroupInfo struct {
	ID    int64
	Name  string
	Owner string
}

// GroupList returns all groups with their owner usernames.
func (s *Store) GroupList() ([]GroupInfo, error) {
	rows, err := s.db.Query(`
		SELECT g.id, g.name, u.username
		FROM groups g
		JOIN users u ON u.id = g.owner_id
		ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("list all groups: %w", err)
	}
	defer rows.Close()

	var out []GroupInfo
	for rows.Next() {
		var gi GroupInfo
		if err := rows.Scan(&gi.ID, &gi.Name, &gi.Owner); err != nil {
			return nil, err
		}
		out = append(out, gi)
	}
	return out, rows.Err()
}
