package tx

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"txscope/internal/core/id"
)

// ScopeState is the lifecycle state of a scope.
type ScopeState uint8

const (
	ScopeOpen ScopeState = iota
	ScopeClosing
	ScopeClosed
)

func (s ScopeState) String() string {
	switch s {
	case ScopeOpen:
		return "open"
	case ScopeClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Scope is one logical transaction demarcation.
type Scope struct {
	id     id.ID
	def    Definition
	parent *Scope
	owner  *Context
	state  ScopeState

	// isNew is set when this scope began the physical transaction it runs in.
	isNew        bool
	rollbackOnly bool
	cause        string

	// handle is the physical transaction in force for this scope; suspended
	// is the one parked by a REQUIRES_NEW scope until it closes.
	handle    Handle
	suspended Handle
	savepoint string

	started      time.Time
	span         trace.Span
	participants []Participant
}

// ID returns the unique scope id.
func (s *Scope) ID() id.ID { return s.id }

// Name returns the definition name.
func (s *Scope) Name() string { return s.def.Name }

// Definition returns the definition the scope was opened with.
func (s *Scope) Definition() Definition { return s.def }

// Propagation returns the requested propagation behavior.
func (s *Scope) Propagation() Propagation { return s.def.Propagation }

// IsNew reports whether this scope began (and therefore owns) its physical transaction.
func (s *Scope) IsNew() bool { return s.isNew }

// IsRollbackOnly reports whether the scope has been marked rollback-only.
func (s *Scope) IsRollbackOnly() bool { return s.rollbackOnly }

// Parent returns the enclosing scope, or nil for the outermost one.
func (s *Scope) Parent() *Scope { return s.parent }

// HasSavepoint reports whether the scope joined behind a savepoint.
func (s *Scope) HasSavepoint() bool { return s.savepoint != "" }

// Suspended reports whether the scope parked an outer physical transaction.
func (s *Scope) Suspended() bool { return s.suspended != nil }

// State returns the lifecycle state.
func (s *Scope) State() ScopeState { return s.state }

// Handle returns the physical transaction the scope runs in.
func (s *Scope) Handle() Handle { return s.handle }

// boundary reports whether rollback-only propagation stops at s.
func (s *Scope) boundary() bool {
	return s.isNew || s.savepoint != ""
}

// markRollbackOnly sets the flag on s and every ancestor up to and including
// the nearest boundary scope. The flag is never cleared.
func (s *Scope) markRollbackOnly(cause string) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.rollbackOnly = true
		if cur.cause == "" {
			cur.cause = cause
		}
		if cur.boundary() {
			return
		}
	}
}

// markLocalRollbackOnly sets the flag on s alone.
func (s *Scope) markLocalRollbackOnly(cause string) {
	s.rollbackOnly = true
	if s.cause == "" {
		s.cause = cause
	}
}

// physicalOwner returns the scope that began the physical transaction s runs in.
func (s *Scope) physicalOwner() *Scope {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.isNew {
			return cur
		}
	}
	return nil
}

func (s *Scope) participant(failure error) Participant {
	p := Participant{
		ScopeID:      s.id,
		Name:         s.def.Name,
		Propagation:  s.def.Propagation,
		Savepoint:    s.savepoint != "",
		RollbackOnly: s.rollbackOnly,
	}
	if failure != nil {
		p.Failure = failure.Error()
	}
	return p
}
