package chat

import (
	"errors"
	"strconv"

	"parley/server/internal/proto"
	"parley/server/internal/store"
)

// knownVerbs bounds the metric label cardinality; anything else is
// counted as "unknown" and answered with 404.
var knownVerbs = map[string]bool{
	"PING": true, "REGISTER": true, "LOGIN": true,
	"LOGOUT": true, "WHOAMI": true, "DISCONNECT": true,
	"FRIEND_INVITE": true, "FRIEND_ACCEPT": true, "FRIEND_REJECT": true,
	"FRIEND_PENDING": true, "FRIEND_LIST": true, "FRIEND_DELETE": true,
	"GROUP_CREATE": true, "GROUP_LIST": true, "GROUP_MEMBERS": true,
	"GROUP_ADD": true, "GROUP_REMOVE": true, "GROUP_LEAVE": true,
	"PM_CONVERSATIONS": true, "PM_CHAT_START": true, "PM_CHAT_END": true,
	"PM_SEND": true, "PM_HISTORY": true,
	"GM_CHAT_START": true, "GM_CHAT_END": true, "GM_SEND": true,
}

// dispatch parses one record and routes it to its handler. It always
// produces exactly one response record; the second return asks the
// worker to close the connection after writing it.
func (s *Server) dispatch(c *conn, rec []byte) (string, bool) {
	req, err := proto.ParseRequest(rec)
	if err != nil {
		// The request id could not be read, so the error carries "0".
		return proto.FormatErr("0", 400, "bad_request"), false
	}

	verb := req.Verb
	if !knownVerbs[verb] {
		verb = "unknown"
	}
	s.metrics.RequestsTotal.WithLabelValues(verb).Inc()

	switch req.Verb {
	case "PING":
		return proto.FormatOK(req.ReqID, "pong=1"), false
	case "REGISTER":
		return s.handleRegister(req), false
	case "LOGIN":
		return s.handleLogin(c, req), false
	}

	// Everything else authenticates first, even unknown verbs.
	token, _ := req.Field("token")
	userID, err := s.sessions.Validate(token)
	if err != nil {
		return proto.FormatErr(req.ReqID, 401, "invalid_token"), false
	}

	switch req.Verb {
	case "LOGOUT":
		return s.handleLogout(userID, token, req), false
	case "WHOAMI":
		return proto.FormatOK(req.ReqID, "user_id="+strconv.FormatInt(userID, 10)), false
	case "DISCONNECT":
		return proto.FormatOK(req.ReqID, "ok=1"), true
	case "FRIEND_INVITE":
		return s.handleFriendInvite(userID, req), false
	case "FRIEND_ACCEPT":
		return s.handleFriendAccept(userID, req), false
	case "FRIEND_REJECT":
		return s.handleFriendReject(userID, req), false
	case "FRIEND_PENDING":
		return s.handleFriendPending(userID, req), false
	case "FRIEND_LIST":
		return s.handleFriendList(userID, req), false
	case "FRIEND_DELETE":
		return s.handleFriendDelete(userID, req), false
	case "GROUP_CREATE":
		return s.handleGroupCreate(userID, req), false
	case "GROUP_LIST":
		return s.handleGroupList(userID, req), false
	case "GROUP_MEMBERS":
		return s.handleGroupMembers(userID, req), false
	case "GROUP_ADD":
		return s.handleGroupAdd(userID, req), false
	case "GROUP_REMOVE":
		return s.handleGroupRemove(userID, req), false
	case "GROUP_LEAVE":
		return s.handleGroupLeave(userID, req), false
	case "PM_CONVERSATIONS":
		return s.handlePMConversations(userID, req), false
	case "PM_CHAT_START":
		return s.handlePMChatStart(userID, req), false
	case "PM_CHAT_END":
		return s.handlePMChatEnd(userID, req), false
	case "PM_SEND":
		return s.handlePMSend(userID, req), false
	case "PM_HISTORY":
		return s.handlePMHistory(userID, req), false
	case "GM_CHAT_START":
		return s.handleGMChatStart(userID, req), false
	case "GM_CHAT_END":
		return s.handleGMChatEnd(userID, req), false
	case "GM_SEND":
		return s.handleGMSend(userID, req), false
	default:
		return proto.FormatErr(req.ReqID, 404, "unknown_command"), false
	}
}

// errReply maps store errors onto the wire status table. selfTag names
// the 422 tag used for ErrSelf, which varies by verb. Duplicate-record
// errors (ErrExists) also vary by verb and are mapped at the handler
// before this fallback. Anything unrecognised collapses to 500.
func errReply(reqID string, err error, selfTag string) string {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return proto.FormatErr(reqID, 422, "invalid_fields")
	case errors.Is(err, store.ErrSelf):
		return proto.FormatErr(reqID, 422, selfTag)
	case errors.Is(err, store.ErrUserNotFound):
		return proto.FormatErr(reqID, 404, "user_not_found")
	case errors.Is(err, store.ErrInviteNotFound):
		return proto.FormatErr(reqID, 404, "invite_not_found")
	case errors.Is(err, store.ErrFriendNotFound):
		return proto.FormatErr(reqID, 404, "friend_not_found")
	case errors.Is(err, store.ErrMemberNotFound):
		return proto.FormatErr(reqID, 404, "member_not_found")
	case errors.Is(err, store.ErrGroupNotFound):
		return proto.FormatErr(reqID, 404, "not_group_member")
	case errors.Is(err, store.ErrNotOwner):
		return proto.FormatErr(reqID, 403, "not_group_owner")
	case errors.Is(err, store.ErrNotMember):
		return proto.FormatErr(reqID, 403, "not_group_member")
	case errors.Is(err, store.ErrOwnerLeave):
		return proto.FormatErr(reqID, 422, "owner_cannot_leave")
	case errors.Is(err, store.ErrAlreadyFriends):
		return proto.FormatErr(reqID, 409, "already_friends")
	default:
		return proto.FormatErr(reqID, 500, "server_error")
	}
}

func missingFields(reqID string) string {
	return proto.FormatErr(reqID, 400, "missing_fields")
}
