// Package member provides member registration with an audit log entry per join.
// The member and its log entry are written in separate scopes, so the
// propagation of the log scope decides whether a log failure takes the member
// down with it.
package member

import (
	"context"
	"strings"
	"time"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/core/tx"
)

// KindLogFailure tags a failure of the log step.
var KindLogFailure = tx.FaultKind("log_failure")

// logFailureMarker in a username makes the log step fail.
const logFailureMarker = "log-failure"

// Member is a registered user.
type Member struct {
	ID        id.ID     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMember creates a Member with a fresh id.
func NewMember(username string) *Member {
	return &Member{
		ID:        id.New(),
		Username:  strings.TrimSpace(username),
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks required fields.
func (m *Member) Validate(_ context.Context) error {
	if m.Username == "" {
		return apperror.NewValidation("username is required").
			WithDetail("field", "username")
	}
	if len(m.Username) > 100 {
		return apperror.NewValidation("username must be at most 100 characters").
			WithDetail("field", "username")
	}
	return nil
}

// Log is the audit entry written for each join.
type Log struct {
	ID        id.ID     `db:"id" json:"id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLog creates a Log entry with a fresh id.
func NewLog(message string) *Log {
	return &Log{
		ID:        id.New(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
