package chat

import (
	"errors"
	"strings"

	"parley/server/internal/proto"
	"parley/server/internal/store"
)

func (s *Server) handleFriendInvite(userID int64, req *proto.Request) string {
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	err := s.st.Invite(userID, username)
	if errors.Is(err, store.ErrExists) {
		return proto.FormatErr(req.ReqID, 409, "already_friend_or_pending")
	}
	if err != nil {
		return errReply(req.ReqID, err, "cannot_invite_self")
	}
	return proto.FormatOK(req.ReqID, "username="+username+" status=pending")
}

func (s *Server) handleFriendAccept(userID int64, req *proto.Request) string {
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	if err := s.st.Accept(userID, username); err != nil {
		return errReply(req.ReqID, err, "cannot_accept_self")
	}
	return proto.FormatOK(req.ReqID, "username="+username+" status=accepted")
}

func (s *Server) handleFriendReject(userID int64, req *proto.Request) string {
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	if err := s.st.Reject(userID, username); err != nil {
		return errReply(req.ReqID, err, "cannot_reject_self")
	}
	return proto.FormatOK(req.ReqID, "username="+username+" status=rejected")
}

func (s *Server) handleFriendPending(userID int64, req *proto.Request) string {
	names, err := s.st.Pending(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID, "username="+strings.Join(names, ","))
}

// handleFriendList annotates each friend with their presence at query
// time by consulting the session registry.
func (s *Server) handleFriendList(userID int64, req *proto.Request) string {
	names, err := s.st.Friends(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	parts := make([]string, len(names))
	for i, name := range names {
		state := "offline"
		if id, err := s.st.UserID(name); err == nil && s.sessions.Online(id) {
			state = "online"
		}
		parts[i] = name + ":" + state
	}
	return proto.FormatOK(req.ReqID, "username="+strings.Join(parts, ","))
}

func (s *Server) handleFriendDelete(userID int64, req *proto.Request) string {
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	if err := s.st.DeleteFriend(userID, username); err != nil {
		return errReply(req.ReqID, err, "cannot_delete_self")
	}
	return proto.FormatOK(req.ReqID, "username="+username+" status=deleted")
}
