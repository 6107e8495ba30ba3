package tx

import (
	"context"
	"errors"
)

// ErrCommitRolledBack is returned by Handle.Commit when the resource itself
// turned the commit into a rollback (e.g. the transaction was already aborted).
var ErrCommitRolledBack = errors.New("commit resulted in rollback")

// Resource begins physical transactions against one transactional backend.
type Resource interface {
	// Begin acquires and begins a fresh physical transaction.
	// Isolation, access mode and timeout are taken from def.
	Begin(ctx context.Context, def Definition) (Handle, error)
}

// Handle is one physical transaction.
// State moves INACTIVE -> ACTIVE -> {COMMITTED, ROLLED_BACK} and never back.
type Handle interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	IsActive() bool
}

// State of a physical transaction.
type State uint8

const (
	StateInactive State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "inactive"
	}
}

// Final reports whether no further transition is possible.
func (s State) Final() bool {
	return s == StateCommitted || s == StateRolledBack
}
