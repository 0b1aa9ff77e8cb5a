package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"parley/server/internal/proto"
	"parley/server/internal/session"
	"parley/server/internal/store"
)

// groupIDField extracts and parses the group_id key. The second return
// is a ready error record when extraction fails.
func groupIDField(req *proto.Request) (int64, string) {
	raw, ok := req.Field("group_id")
	if !ok {
		return 0, missingFields(req.ReqID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, proto.FormatErr(req.ReqID, 400, "invalid_group_id")
	}
	return id, ""
}

func (s *Server) handleGroupCreate(userID int64, req *proto.Request) string {
	name, ok := req.Field("name")
	if !ok {
		return missingFields(req.ReqID)
	}
	gid, err := s.st.CreateGroup(userID, name)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID, fmt.Sprintf("group_id=%d name=%s", gid, name))
}

func (s *Server) handleGroupList(userID int64, req *proto.Request) string {
	ids, err := s.st.Groups(userID)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return proto.FormatOK(req.ReqID, "groups="+strings.Join(parts, ","))
}

func (s *Server) handleGroupMembers(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	members, err := s.st.Members(userID, gid)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID, "members="+strings.Join(members, ","))
}

func (s *Server) handleGroupAdd(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	err := s.st.AddMember(userID, gid, username)
	if errors.Is(err, store.ErrExists) {
		return proto.FormatErr(req.ReqID, 409, "already_member")
	}
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	return proto.FormatOK(req.ReqID, fmt.Sprintf("group_id=%d username=%s status=added", gid, username))
}

// handleGroupRemove kicks a member. If the target is currently
// subscribed to the group's conversation they are notified and their
// subscription is force-cleared; remaining subscribers see a leave.
func (s *Server) handleGroupRemove(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	username, ok := req.Field("username")
	if !ok {
		return missingFields(req.ReqID)
	}
	removedID, err := s.st.RemoveMember(userID, gid, username)
	if err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	s.kickSubscriber(removedID, gid, username)
	return proto.FormatOK(req.ReqID, fmt.Sprintf("group_id=%d username=%s status=removed", gid, username))
}

func (s *Server) handleGroupLeave(userID int64, req *proto.Request) string {
	gid, errResp := groupIDField(req)
	if errResp != "" {
		return errResp
	}
	if err := s.st.LeaveGroup(userID, gid); err != nil {
		return errReply(req.ReqID, err, "invalid_fields")
	}
	// Leaving the group also leaves its conversation.
	if sub, ok := s.sessions.SubOf(userID); ok && sub.Kind == session.Group && sub.ID == gid {
		s.endSubscription(userID)
	}
	return proto.FormatOK(req.ReqID, fmt.Sprintf("group_id=%d status=left", gid))
}
