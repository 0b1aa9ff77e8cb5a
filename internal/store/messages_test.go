package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestSendPMAndHistory(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	id1, ts1, err := s.SendPM(alice, bob, "SGVsbG8=")
	if err != nil {
		t.Fatalf("SendPM: %v", err)
	}
	if id1 <= 0 || ts1 <= 0 {
		t.Errorf("id/ts: got %d %d", id1, ts1)
	}
	id2, _, err := s.SendPM(bob, alice, "V29ybGQ=")
	if err != nil {
		t.Fatalf("SendPM reply: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}

	// Newest first, identical from both sides.
	for _, uid := range []int64{alice, bob} {
		other := alice + bob - uid
		hist, err := s.PMHistory(uid, other, 50)
		if err != nil {
			t.Fatalf("PMHistory(%d): %v", uid, err)
		}
		if len(hist) != 2 {
			t.Fatalf("history length: got %d, want 2", len(hist))
		}
		if hist[0].ID != id2 || hist[1].ID != id1 {
			t.Errorf("order: got [%d %d], want [%d %d]", hist[0].ID, hist[1].ID, id2, id1)
		}
		if hist[1].From != "alice" || hist[1].Content != "SGVsbG8=" {
			t.Errorf("first message: got %+v", hist[1])
		}
	}
}

func TestSendPMErrors(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")

	if _, _, err := s.SendPM(alice, alice, "QQ=="); !errors.Is(err, ErrSelf) {
		t.Errorf("self send: got %v, want ErrSelf", err)
	}
	if _, _, err := s.SendPM(alice, 2, ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty content: got %v, want ErrInvalid", err)
	}
}

func TestPMHistoryLimit(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	var last int64
	for i := 0; i < 10; i++ {
		id, _, err := s.SendPM(alice, bob, fmt.Sprintf("bXNnJWQ%d", i))
		if err != nil {
			t.Fatalf("SendPM %d: %v", i, err)
		}
		last = id
	}
	hist, err := s.PMHistory(bob, alice, 3)
	if err != nil {
		t.Fatalf("PMHistory: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("limit: got %d, want 3", len(hist))
	}
	if hist[0].ID != last {
		t.Errorf("newest first: got %d, want %d", hist[0].ID, last)
	}
}

func TestConversationsAndUnread(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")
	carol := register(t, s, "carol")

	s.SendPM(bob, alice, "QQ==")
	s.SendPM(bob, alice, "Qg==")
	s.SendPM(alice, carol, "Qw==")

	convs, err := s.Conversations(alice)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	got := map[string]int64{}
	for _, c := range convs {
		got[c.Username] = c.Unread
	}
	if got["bob"] != 2 {
		t.Errorf("unread from bob: got %d, want 2", got["bob"])
	}
	if got["carol"] != 0 {
		t.Errorf("unread from carol: got %d, want 0 (own messages don't count)", got["carol"])
	}

	if err := s.MarkRead(alice, bob); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	n, err := s.UnreadFrom(alice, bob)
	if err != nil || n != 0 {
		t.Errorf("unread after mark: got %d err=%v", n, err)
	}
	// Bob's view of his own sent messages is unaffected.
	if n, _ := s.UnreadFrom(bob, alice); n != 0 {
		t.Errorf("bob's unread: got %d, want 0", n)
	}
}

func TestMarkReadOnlyOtherParty(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	s.SendPM(alice, bob, "QQ==")
	s.SendPM(bob, alice, "Qg==")

	// Alice marking her side read must not consume bob's unread count.
	s.MarkRead(alice, bob)
	if n, _ := s.UnreadFrom(bob, alice); n != 1 {
		t.Errorf("bob should still have 1 unread, got %d", n)
	}
}

func TestSendGMAndHistory(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")
	register(t, s, "carol")
	gid, _ := s.CreateGroup(alice, "general")
	s.AddMember(alice, gid, "bob")

	id1, _, err := s.SendGM(alice, gid, "SGk=")
	if err != nil {
		t.Fatalf("SendGM: %v", err)
	}
	id2, _, err := s.SendGM(bob, gid, "WW8=")
	if err != nil {
		t.Fatalf("SendGM: %v", err)
	}

	hist, err := s.GMHistory(gid, 50)
	if err != nil {
		t.Fatalf("GMHistory: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != id2 || hist[1].ID != id1 {
		t.Errorf("history: got %+v", hist)
	}
	if hist[0].From != "bob" {
		t.Errorf("from: got %q, want bob", hist[0].From)
	}
}

func TestSendGMErrors(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	carol := register(t, s, "carol")
	gid, _ := s.CreateGroup(alice, "general")

	if _, _, err := s.SendGM(carol, gid, "QQ=="); !errors.Is(err, ErrNotMember) {
		t.Errorf("non-member: got %v, want ErrNotMember", err)
	}
	if _, _, err := s.SendGM(alice, 9999, "QQ=="); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("unknown group: got %v, want ErrGroupNotFound", err)
	}
	// Nothing was written by the failed sends.
	if hist, _ := s.GMHistory(gid, 50); len(hist) != 0 {
		t.Errorf("history should be empty, got %d entries", len(hist))
	}
}

func TestContentStoredVerbatim(t *testing.T) {
	s := newMemStore(t)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	// Base64 with padding and '+'/'/' characters must survive untouched.
	content := "aGVsbG8gd29ybGQh+/=="
	s.SendPM(alice, bob, content)
	hist, _ := s.PMHistory(alice, bob, 1)
	if len(hist) != 1 || hist[0].Content != content {
		t.Errorf("content: got %+v, want %q", hist, content)
	}
}
