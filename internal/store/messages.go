package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Message is one persisted chat message, private or group. Content is
// the base64 blob exactly as the client sent it; the server never
// decodes it.
type Message struct {
	ID      int64
	FromID  int64
	From    string
	Content string
	TS      int64
}

// Conversation summarises one private conversation for the requesting
// user: the other party and how many of their messages are unread.
type Conversation struct {
	Username string
	Unread   int64
}

// SendPM appends a private message to the pair log and returns its id
// and timestamp. Message ids are drawn from the counter shared with
// the group stream.
func (s *Store) SendPM(fromID, toID int64, content string) (msgID, ts int64, err error) {
	if fromID == toID {
		return 0, 0, ErrSelf
	}
	if content == "" {
		return 0, 0, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := pairKey(fromID, toID)
	msgID = s.allocMsgIDLocked()
	ts = time.Now().Unix()
	_, err = s.db.Exec(
		`INSERT INTO pm_messages (id, pair_lo, pair_hi, from_id, content, ts, read)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		msgID, lo, hi, fromID, content, ts,
	)
	if err != nil {
		s.nextMsgID = msgID // roll back the allocation
		return 0, 0, fmt.Errorf("insert pm: %w", err)
	}
	return msgID, ts, nil
}

// PMHistory returns the most recent messages between userID and
// otherID, newest first. History is identical from both sides of the
// pair.
func (s *Store) PMHistory(userID, otherID int64, limit int) ([]Message, error) {
	lo, hi := pairKey(userID, otherID)
	rows, err := s.db.Query(`
		SELECT m.id, m.from_id, u.username, m.content, m.ts
		FROM pm_messages m
		JOIN users u ON u.id = m.from_id
		WHERE m.pair_lo = ? AND m.pair_hi = ?
		ORDER BY m.id DESC
		LIMIT ?`, lo, hi, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read pm history: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Conversations lists every private conversation involving userID with
// its unread count: messages from the other party not yet read.
func (s *Store) Conversations(userID int64) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT u.username,
		       SUM(CASE WHEN m.from_id != ? AND m.read = 0 THEN 1 ELSE 0 END)
		FROM pm_messages m
		JOIN users u ON u.id = CASE WHEN m.pair_lo = ? THEN m.pair_hi ELSE m.pair_lo END
		WHERE m.pair_lo = ? OR m.pair_hi = ?
		GROUP BY u.username
		ORDER BY u.username`,
		userID, userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.Username, &c.Unread); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkRead flags every message from otherID in the pair log as read.
// Called when userID enters the conversation or explicitly ends it.
func (s *Store) MarkRead(userID, otherID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := pairKey(userID, otherID)
	_, err := s.db.Exec(
		`UPDATE pm_messages SET read = 1 WHERE pair_lo = ? AND pair_hi = ? AND from_id = ?`,
		lo, hi, otherID,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UnreadFrom counts unread messages from otherID to userID.
func (s *Store) UnreadFrom(userID, otherID int64) (int64, error) {
	lo, hi := pairKey(userID, otherID)
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pm_messages
		 WHERE pair_lo = ? AND pair_hi = ? AND from_id = ? AND read = 0`,
		lo, hi, otherID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// SendGM appends a group message. The sender must be a member of an
// existing group.
func (s *Store) SendGM(fromID, groupID int64, content string) (msgID, ts int64, err error) {
	if content == "" {
		return 0, 0, ErrInvalid
	}
	if ok, err := s.GroupExists(groupID); err != nil {
		return 0, 0, err
	} else if !ok {
		return 0, 0, ErrGroupNotFound
	}
	if member, err := s.IsMember(fromID, groupID); err != nil {
		return 0, 0, err
	} else if !member {
		return 0, 0, ErrNotMember
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgID = s.allocMsgIDLocked()
	ts = time.Now().Unix()
	_, err = s.db.Exec(
		`INSERT INTO gm_messages (id, group_id, from_id, content, ts) VALUES (?, ?, ?, ?, ?)`,
		msgID, groupID, fromID, content, ts,
	)
	if err != nil {
		s.nextMsgID = msgID
		return 0, 0, fmt.Errorf("insert gm: %w", err)
	}
	return msgID, ts, nil
}

// GMHistory returns the most recent messages in groupID, newest first.
func (s *Store) GMHistory(groupID int64, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.from_id, u.username, m.content, m.ts
		FROM gm_messages m
		JOIN users u ON u.id = m.from_id
		WHERE m.group_id = ?
		ORDER BY m.id DESC
		LIMIT ?`, groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read gm history: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessageCount returns the total number of persisted messages, PM and
// GM combined.
func (s *Store) MessageCount() (int64, error) {
	var pm, gm int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pm_messages`).Scan(&pm); err != nil {
		return 0, fmt.Errorf("count pm: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM gm_messages`).Scan(&gm); err != nil {
		return 0, fmt.Errorf("count gm: %w", err)
	}
	return pm + gm, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.FromID, &m.From, &m.Content, &m.TS); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
