package chat

import (
	"log/slog"
	"sync"

	"parley/server/internal/proto"
	"parley/server/internal/session"
)

// Push delivery. The session registry snapshots subscribers under its
// own lock; all socket writes happen here, outside that lock, guarded
// only by each connection's write mutex.

func (s *Server) push(c session.Conn, record string) {
	c.Push(record)
	s.metrics.PushesTotal.Inc()
}

// groupSendLock returns the mutex serialising message sends within one
// group. Holding it across id assignment and fan-out dispatch means
// every subscriber observes the group's messages in id order.
func (s *Server) groupSendLock(groupID int64) *sync.Mutex {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	mu := s.sendLocks[groupID]
	if mu == nil {
		mu = new(sync.Mutex)
		s.sendLocks[groupID] = mu
	}
	return mu
}

// broadcastGroup writes record to every session subscribed to groupID
// except the excluded user.
func (s *Server) broadcastGroup(groupID, exclude int64, record string) {
	for _, snap := range s.sessions.GroupSubscribers(groupID, exclude) {
		s.push(snap.Conn, record)
	}
}

// endSubscription performs the full end-of-conversation semantics for
// userID's current subscription: read-marking for private chats plus a
// departure push to whoever remains subscribed. Safe to call with no
// subscription active.
func (s *Server) endSubscription(userID int64) {
	sub, ok := s.sessions.SubOf(userID)
	if !ok || sub.Kind == session.None {
		return
	}
	s.sessions.SetSub(userID, session.Subscription{})
	s.notifyDeparture(userID, sub)
}

// emitDeparture is the teardown variant of endSubscription: the session
// is already gone from the registry, so the subscription comes from a
// snapshot taken at removal.
func (s *Server) emitDeparture(snap session.Snapshot) {
	s.notifyDeparture(snap.UserID, snap.Sub)
}

func (s *Server) notifyDeparture(userID int64, sub session.Subscription) {
	switch sub.Kind {
	case session.Private:
		if err := s.st.MarkRead(userID, sub.ID); err != nil {
			slog.Warn("mark read on chat end", "user", userID, "err", err)
		}
		name, err := s.st.Username(userID)
		if err != nil {
			return
		}
		if peer, ok := s.sessions.PrivatePeer(userID, sub.ID); ok {
			s.push(peer.Conn, proto.FormatPush("LEAVE", "user", name))
		}
	case session.Group:
		name, err := s.st.Username(userID)
		if err != nil {
			return
		}
		s.broadcastGroup(sub.ID, userID, proto.FormatPush("GM_LEAVE", "user", name))
	}
}

// kickSubscriber handles the forced departure of a member removed from
// a group while subscribed to its conversation: the target is told,
// their subscription is cleared, and remaining subscribers see a leave.
func (s *Server) kickSubscriber(userID, groupID int64, username string) {
	sub, ok := s.sessions.SubOf(userID)
	if !ok || sub.Kind != session.Group || sub.ID != groupID {
		return
	}
	s.sessions.SetSub(userID, session.Subscription{})
	if c, ok := s.sessions.ConnOf(userID); ok {
		s.push(c, proto.FormatPush("GM_KICKED"))
	}
	s.broadcastGroup(groupID, userID, proto.FormatPush("GM_LEAVE", "user", username))
}
