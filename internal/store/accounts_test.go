package store

import (
	"errors"
	"testing"
)

func TestRegisterThenAuthenticate(t *testing.T) {
	s := newMemStore(t)

	id, err := s.Register("alice", "secret12", "a@b.c")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id <= 0 {
		t.Fatalf("user id: got %d, want positive", id)
	}

	got, err := s.Authenticate("alice", "secret12")
	if err != nil || got != id {
		t.Errorf("Authenticate: id=%d err=%v, want %d", got, err, id)
	}
	if _, err := s.Authenticate("alice", "wrongpass"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("wrong password: got %v, want ErrBadPassword", err)
	}
	if _, err := s.Authenticate("nobody", "secret12"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	s := newMemStore(t)
	register(t, s, "alice")
	if _, err := s.Register("alice", "password1", "x@y.z"); !errors.Is(err, ErrExists) {
		t.Errorf("got %v, want ErrExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newMemStore(t)

	cases := []struct {
		name                      string
		username, password, email string
	}{
		{"short username", "ab", "password1", "a@b.c"},
		{"long username", "a234567890123456789012345678901234", "password1", "a@b.c"},
		{"bad chars", "al ice", "password1", "a@b.c"},
		{"dash", "al-ice", "password1", "a@b.c"},
		{"short password", "alice", "12345", "a@b.c"},
		{"space in password", "alice", "pass word1", "a@b.c"},
		{"no at", "alice", "password1", "ab.c"},
		{"no dot after at", "alice", "password1", "a@bc"},
		{"dot last", "alice", "password1", "a@b."},
		{"at first", "alice", "password1", "@b.c"},
	}
	for _, tc := range cases {
		if _, err := s.Register(tc.username, tc.password, tc.email); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: got %v, want ErrInvalid", tc.name, err)
		}
	}
}

func TestUserIDsMonotonic(t *testing.T) {
	s := newMemStore(t)
	a := register(t, s, "alice")
	b := register(t, s, "bob")
	c := register(t, s, "carol")
	if !(a < b && b < c) {
		t.Errorf("ids not increasing: %d %d %d", a, b, c)
	}
}

func TestUsernameLookups(t *testing.T) {
	s := newMemStore(t)
	id := register(t, s, "alice")

	got, err := s.UserID("alice")
	if err != nil || got != id {
		t.Errorf("UserID: got %d err=%v", got, err)
	}
	name, err := s.Username(id)
	if err != nil || name != "alice" {
		t.Errorf("Username: got %q err=%v", name, err)
	}
	if _, err := s.UserID("Alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("usernames are case-sensitive: got %v", err)
	}
	if _, err := s.Username(999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
}

func TestPasswordDigestRoundTrip(t *testing.T) {
	salt, err := newSalt()
	if err != nil {
		t.Fatalf("newSalt: %v", err)
	}
	digest := passwordDigest(salt, "hunter22")
	if !verifyPassword(salt, digest, "hunter22") {
		t.Error("verify should match the original plaintext")
	}
	if verifyPassword(salt, digest, "hunter23") {
		t.Error("verify should reject a different plaintext")
	}
	salt2, _ := newSalt()
	if passwordDigest(salt2, "hunter22") == digest {
		t.Error("different salts should produce different digests")
	}
}
