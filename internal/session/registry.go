// Package session holds the process-wide table binding tokens to
// users, connections, and the active conversation subscription.
package session

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"
)

const (
	// TokenLen is the length of a session token in characters.
	TokenLen = 32

	// DefaultTimeout is the idle timeout applied when none is configured.
	DefaultTimeout = 3600 * time.Second

	// DefaultCapacity is the maximum number of concurrent sessions.
	DefaultCapacity = 1000
)

var (
	ErrAlreadyLoggedIn = errors.New("user already has an active session")
	ErrFull            = errors.New("session table full")
	ErrNotFound        = errors.New("session not found")
	ErrExpired         = errors.New("session expired")
)

// Kind discriminates the subscription variant.
type Kind int

const (
	// None means pushes are not delivered to this session.
	None Kind = iota
	// Private subscribes to the 1:1 conversation with Subscription.ID.
	Private
	// Group subscribes to the group conversation Subscription.ID.
	Group
)

// Subscription names the conversation a session currently receives
// pushes for. ID is a partner user id for Private and a group id for
// Group; it is zero for None.
type Subscription struct {
	Kind Kind
	ID   int64
}

// Conn is the write side of a client connection as seen by the
// registry and the delivery engine. Push must serialise whole records
// against concurrent responses; delivery errors are swallowed since
// persisted history is authoritative.
type Conn interface {
	ID() int64
	Push(record string)
}

// Snapshot is an immutable copy of a session taken under the registry
// lock, safe to use for push delivery after the lock is released.
type Snapshot struct {
	UserID int64
	Sub    Subscription
	Conn   Conn
}

type entry struct {
	token        string
	userID       int64
	conn         Conn
	createdAt    time.Time
	lastActivity time.Time
	sub          Subscription
}

// Registry is the single writer for all session state. Every mutation
// and lookup goes through one mutex, so validation racing a disconnect
// resolves cleanly either way.
type Registry struct {
	mu      sync.Mutex
	timeout time.Duration
	cap     int

	byToken map[string]*entry
	byUser  map[int64]*entry

	now func() time.Time // test hook
}

// New returns a registry with the given idle timeout and capacity.
// Non-positive arguments fall back to the defaults.
func New(timeout time.Duration, capacity int) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		timeout: timeout,
		cap:     capacity,
		byToken: make(map[string]*entry),
		byUser:  make(map[int64]*entry),
		now:     time.Now,
	}
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newToken() string {
	var raw [TokenLen]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range raw {
		raw[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(raw[:])
}

// Create opens a session for userID on conn. An active session for the
// same user on a different connection fails with ErrAlreadyLoggedIn;
// ErrFull is returned at capacity. Every session Create drops along the
// way — the connection's previous session and any idle-expired entries
// swept for capacity — is returned as snapshots so the caller can emit
// the same departure pushes a disconnect would.
func (r *Registry) Create(userID int64, conn Conn) (string, []Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.byUser {
		if e.userID != userID || !r.alive(e) {
			continue
		}
		if e.conn.ID() != conn.ID() {
			return "", nil, ErrAlreadyLoggedIn
		}
	}
	// A connection holds at most one session.
	var dropped []Snapshot
	for _, e := range r.byToken {
		if e.conn.ID() == conn.ID() {
			dropped = append(dropped, snapshot(e))
			r.dropLocked(e)
		}
	}
	r.sweepLocked(&dropped)
	if len(r.byToken) >= r.cap {
		return "", dropped, ErrFull
	}

	var token string
	for attempt := 0; attempt < 10; attempt++ {
		token = newToken()
		if _, dup := r.byToken[token]; !dup {
			break
		}
	}

	now := r.now()
	e := &entry{
		token:        token,
		userID:       userID,
		conn:         conn,
		createdAt:    now,
		lastActivity: now,
	}
	r.byToken[token] = e
	r.byUser[userID] = e
	return token, dropped, nil
}

// Validate authenticates one request. It refreshes last-activity on
// success. An idle entry is reported as ErrExpired but left in place:
// removal happens in Reap (or the sweep in Create), which snapshots
// the entry so its subscription still gets departure pushes.
func (r *Registry) Validate(token string) (int64, error) {
	if token == "" {
		return 0, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byToken[token]
	if !ok {
		return 0, ErrNotFound
	}
	if !r.alive(e) {
		return 0, ErrExpired
	}
	e.lastActivity = r.now()
	return e.userID, nil
}

// Destroy releases the session for token.
func (r *Registry) Destroy(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[token]
	if !ok {
		return ErrNotFound
	}
	r.dropLocked(e)
	return nil
}

// RemoveByConn releases every session bound to connID and returns
// snapshots of what was removed so the caller can emit departure
// pushes for their subscriptions.
func (r *Registry) RemoveByConn(connID int64) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []Snapshot
	for _, e := range r.byToken {
		if e.conn.ID() == connID {
			removed = append(removed, snapshot(e))
			r.dropLocked(e)
		}
	}
	return removed
}

// Reap removes all idle-expired sessions and returns their snapshots.
// Expiry is treated like a disconnect, so callers emit the same
// departure pushes.
func (r *Registry) Reap() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []Snapshot
	r.sweepLocked(&expired)
	return expired
}

// Online reports whether userID has an active session.
func (r *Registry) Online(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byUser[userID]
	return e != nil && r.alive(e)
}

// ConnOf returns the connection of userID's active session.
func (r *Registry) ConnOf(userID int64) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byUser[userID]
	if e == nil || !r.alive(e) {
		return nil, false
	}
	return e.conn, true
}

// SubOf returns userID's current subscription.
func (r *Registry) SubOf(userID int64) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byUser[userID]
	if e == nil || !r.alive(e) {
		return Subscription{}, false
	}
	return e.sub, true
}

// SetSub replaces userID's subscription. It reports false when the
// user has no active session.
func (r *Registry) SetSub(userID int64, sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byUser[userID]
	if e == nil || !r.alive(e) {
		return false
	}
	e.sub = sub
	return true
}

// IsPrivateWith reports whether userID's subscription is the private
// conversation with partner.
func (r *Registry) IsPrivateWith(userID, partner int64) bool {
	sub, ok := r.SubOf(userID)
	return ok && sub.Kind == Private && sub.ID == partner
}

// PrivatePeer returns a snapshot of partner's session iff partner is
// currently subscribed to the private conversation with userID.
func (r *Registry) PrivatePeer(userID, partner int64) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byUser[partner]
	if e == nil || !r.alive(e) {
		return Snapshot{}, false
	}
	if e.sub.Kind != Private || e.sub.ID != userID {
		return Snapshot{}, false
	}
	return snapshot(e), true
}

// GroupSubscribers snapshots every session subscribed to groupID,
// excluding the given user. The caller iterates and writes outside the
// registry lock.
func (r *Registry) GroupSubscribers(groupID, exclude int64) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []Snapshot
	for _, e := range r.byUser {
		if e.userID == exclude || !r.alive(e) {
			continue
		}
		if e.sub.Kind == Group && e.sub.ID == groupID {
			subs = append(subs, snapshot(e))
		}
	}
	return subs
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.byToken {
		if r.alive(e) {
			n++
		}
	}
	return n
}

func (r *Registry) alive(e *entry) bool {
	return r.now().Sub(e.lastActivity) < r.timeout
}

func (r *Registry) dropLocked(e *entry) {
	delete(r.byToken, e.token)
	if cur := r.byUser[e.userID]; cur == e {
		delete(r.byUser, e.userID)
	}
}

func (r *Registry) sweepLocked(out *[]Snapshot) {
	for _, e := range r.byToken {
		if !r.alive(e) {
			if out != nil {
				*out = append(*out, snapshot(e))
			}
			r.dropLocked(e)
		}
	}
}

func snapshot(e *entry) Snapshot {
	return Snapshot{UserID: e.userID, Sub: e.sub, Conn: e.conn}
}
