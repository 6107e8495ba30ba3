package member

import (
	"context"
)

// Repository defines the interface for Member persistence.
type Repository interface {
	// Save inserts a member. A taken username yields a DUPLICATE_ENTRY error.
	Save(ctx context.Context, m *Member) error

	// FindByUsername returns NOT_FOUND when no member has the username.
	FindByUsername(ctx context.Context, username string) (*Member, error)
}

// LogRepository defines the interface for Log persistence.
type LogRepository interface {
	Save(ctx context.Context, l *Log) error

	// FindByMessage returns NOT_FOUND when no entry has the message.
	FindByMessage(ctx context.Context, message string) (*Log, error)
}
