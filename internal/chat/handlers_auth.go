package chat

import (
	"errors"
	"strconv"

	"parley/server/internal/proto"
	"parley/server/internal/session"
	"parley/server/internal/store"
)

func (s *Server) handleRegister(req *proto.Request) string {
	username, ok1 := req.Field("username")
	password, ok2 := req.Field("password")
	email, ok3 := req.Field("email")
	if !ok1 || !ok2 || !ok3 {
		return missingFields(req.ReqID)
	}
	id, err := s.st.Register(username, password, email)
	if errors.Is(err, store.ErrExists) {
		return proto.FormatErr(req.ReqID, 409, "username_exists")
	}
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID, "user_id="+strconv.FormatInt(id, 10))
}

func (s *Server) handleLogin(c *conn, req *proto.Request) string {
	username, ok1 := req.Field("username")
	password, ok2 := req.Field("password")
	if !ok1 || !ok2 {
		return missingFields(req.ReqID)
	}
	id, err := s.st.Authenticate(username, password)
	if err != nil {
		// Unknown user, wrong password, and deactivated accounts are
		// indistinguishable on the wire.
		if errors.Is(err, store.ErrUserNotFound) ||
			errors.Is(err, store.ErrBadPassword) ||
			errors.Is(err, store.ErrInactive) {
			return proto.FormatErr(req.ReqID, 401, "invalid_credentials")
		}
		return errReply(req.ReqID, err, "invalid_fields")
	}

	// Sessions displaced by this login (this connection's previous
	// session, expired entries swept for capacity) end like disconnects:
	// their subscriptions get departure pushes.
	token, dropped, err := s.sessions.Create(id, c)
	for _, snap := range dropped {
		s.emitDeparture(snap)
	}
	if err != nil {
		if errors.Is(err, session.ErrAlreadyLoggedIn) {
			return proto.FormatErr(req.ReqID, 409, "already_logged_in")
		}
		return proto.FormatErr(req.ReqID, 500, "server_error")
	}
	return proto.FormatOK(req.ReqID, "token="+token+" user_id="+strconv.FormatInt(id, 10))
}

func (s *Server) handleLogout(userID int64, token string, req *proto.Request) string {
	s.endSubscription(userID)
	s.sessions.Destroy(token)
	return proto.FormatOK(req.ReqID, "ok=1")
}
