package chat

import (
	"fmt"
	"strconv"

	"parley/server/internal/proto"
	"parley/server/internal/session"
)

// handleGMChatStart subscribes the caller to the group's conversation,
// ending any prior subscription first, and announces the join to the
// other subscribers.
func (s *Server) handleGMChatStart(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	exists, err := s.st.GroupExists(gid)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	if !exists {
		return proto.FormatErr(req.ReqID, 404, "not_group_member")
	}
	member, err := s.st.IsMember(userID, gid)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	if !member {
		return proto.FormatErr(req.ReqID, 403, "not_group_member")
	}

	s.endSubscription(userID)
	s.sessions.SetSub(userID, session.Subscription{Kind: session.Group, ID: gid})

	me, err := s.st.Username(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	s.broadcastGroup(gid, userID, proto.FormatPush("GM_JOIN", "user", me))

	name, err := s.st.GroupName(gid)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	msgs, err := s.st.GMHistory(gid, defaultHistoryLimit)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID,
		fmt.Sprintf("group_name=%s me=%s history=%s", name, me, formatHistory(msgs)))
}

// handleGMChatEnd is idempotent, like its private counterpart.
func (s *Server) handleGMChatEnd(userID int64, req *proto.Request) string {
	s.endSubscription(userID)
	return proto.FormatOK(req.ReqID, "status=chat_ended")
}

func (s *Server) handleGMSend(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	content, ok := req.Field("content")
	if !ok {
		return missingFields(req.ReqID)
	}
	// Id assignment and fan-out happen under the group's send lock, so
	// two concurrent sends cannot reach subscribers in opposite orders.
	mu := s.groupSendLock(gid)
	mu.Lock()
	defer mu.Unlock()

	msgID, ts, err := s.st.SendGM(userID, gid, content)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}

	// Fan out to every subscriber except the sender; clients render
	// their own outbound message optimistically.
	if from, err := s.st.Username(userID); err == nil {
		s.broadcastGroup(gid, userID, proto.FormatPush("GM",
			"from", from,
			"content", content,
			"msg_id", strconv.FormatInt(msgID, 10),
			"ts", strconv.FormatInt(ts, 10)))
	}
	return proto.FormatOK(req.ReqID,
		fmt.Sprintf("msg_id=%d group_id=%d status=sent", msgID, gid))
}
