package dto

import (
	"time"

	"txscope/internal/domain/member"
)

// JoinMode selects how a join is scoped.
type JoinMode string

const (
	// JoinModeSeparate saves member and log in independent scopes.
	JoinModeSeparate JoinMode = "separate"
	// JoinModeSingle saves both in one scope; any failure fails the join.
	JoinModeSingle JoinMode = "single"
	// JoinModeRecover saves both in one scope and recovers a log failure.
	JoinModeRecover JoinMode = "recover"
)

// JoinRequest is the body of POST /v1/members.
type JoinRequest struct {
	Username string   `json:"username" binding:"required,max=100"`
	Mode     JoinMode `json:"mode" binding:"omitempty,oneof=separate single recover"`
}

// MemberResponse is a member.
type MemberResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	Logged    bool      `json:"logged"`
}

// FromMember converts a member. logged reports whether its log entry exists.
func FromMember(m *member.Member, logged bool) MemberResponse {
	return MemberResponse{
		ID:        m.ID.String(),
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
		Logged:    logged,
	}
}
