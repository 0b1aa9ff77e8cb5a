package chat

import (
	"fmt"
	"strconv"
	"strings"

	"parley/server/internal/proto"
	"parley/server/internal/session"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// historyLimit reads the optional limit key, clamped to the maximum.
// The second return is false for an unparsable or non-positive value.
func historyLimit(req *proto.Request) (int, bool) {
	raw, ok := req.Field("limit")
	if !ok {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, true
}

func (s *Server) handlePMConversations(userID int64, req *proto.Request) string {
	convs, err := s.st.Conversations(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	if len(convs) == 0 {
		return proto.FormatOK(req.ReqID, "conversations=empty")
	}
	parts := make([]string, len(convs))
	for i, c := range convs {
		parts[i] = fmt.Sprintf("%s:%d", c.Username, c.Unread)
	}
	return proto.FormatOK(req.ReqID, "conversations="+strings.Join(parts, ","))
}

// handlePMChatStart subscribes the caller to the 1:1 conversation with
// the named user, ending any prior subscription first. Opening the
// conversation marks everything from the other party as read; the peer
// is told about the join only if they are subscribed back.
func (s *Server) handlePMChatStart(userID int64, req *proto.Request) string {
	with, ok := req.Field("with")
	if !ok {
		return missingFields(req.ReqID)
	}
	otherID, err := s.st.UserID(with)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}

	s.endSubscription(userID)
	if err := s.st.MarkRead(userID, otherID); err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	s.sessions.SetSub(userID, session.Subscription{Kind: session.Private, ID: otherID})

	me, err := s.st.Username(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	if peer, ok := s.sessions.PrivatePeer(userID, otherID); ok {
		s.push(peer.Conn, proto.FormatPush("JOIN", "user", me))
	}

	msgs, err := s.st.PMHistory(userID, otherID, defaultHistoryLimit)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID,
		fmt.Sprintf("with=%s me=%s history=%s", with, me, formatHistory(msgs)))
}

// handlePMChatEnd is idempotent: ending with no active subscription
// still answers chat_ended.
func (s *Server) handlePMChatEnd(userID int64, req *proto.Request) string {
	s.endSubscription(userID)
	return proto.FormatOK(req.ReqID, "status=chat_ended")
}

func (s *Server) handlePMSend(userID int64, req *proto.Request) string {
	to, ok1 := req.Field("to")
	content, ok2 := req.Field("content")
	if !ok1 || !ok2 {
		return missingFields(req.ReqID)
	}
	toID, err := s.st.UserID(to)
	if err != nil {
		return errReply(req.ReqID, err, "cannot_send_to_self")
	}
	msgID, ts, err := s.st.SendPM(userID, toID, content)
	if err != nil {
		return errReply(req.ReqID, err, "cannot_send_to_self")
	}

	// Push only when the recipient is subscribed to the conversation
	// with the sender; everyone else catches up through history.
	if from, err := s.st.Username(userID); err == nil {
		if peer, ok := s.sessions.PrivatePeer(userID, toID); ok {
			s.push(peer.Conn, proto.FormatPush("PM",
				"from", from,
				"content", content,
				"msg_id", strconv.FormatInt(msgID, 10),
				"ts", strconv.FormatInt(ts, 10)))
		}
	}
	return proto.FormatOK(req.ReqID, fmt.Sprintf("msg_id=%d to=%s status=sent", msgID, to))
}

func (s *Server) handlePMHistory(userID int64, req *proto.Request) string {
	with, ok := req.Field("with")
	if !ok {
		return missingFields(req.ReqID)
	}
	limit, ok := historyLimit(req)
	if !ok {
		return proto.FormatErr(req.ReqID, 422, "invalid_fields")
	}
	otherID, err := s.st.UserID(with)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	msgs, err := s.st.PMHistory(userID, otherID, limit)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID,
		fmt.Sprintf("with=%s messages=%s", with, formatHistory(msgs)))
}
