package tx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"txscope/internal/core/apperror"
	appctx "txscope/internal/core/context"
	"txscope/internal/core/id"
	"txscope/pkg/logger"
)

// Resolver opens and closes scopes against one Resource, applying the
// propagation rules and the rollback policy.
type Resolver struct {
	resource Resource
	policy   *Policy
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the rollback policy (default: DefaultPolicy).
func WithPolicy(p *Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithObserver registers an observer for finished physical transactions.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithTracer overrides the tracer used for transaction spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// NewResolver creates a resolver over resource.
func NewResolver(resource Resource, opts ...Option) *Resolver {
	r := &Resolver{
		resource: resource,
		policy:   DefaultPolicy(),
		tracer:   otel.Tracer("txscope/tx"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the rollback policy in use.
func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Open opens a scope for def on ctx's flow. The returned context carries the
// scope and must be used for all work inside it.
func (r *Resolver) Open(ctx context.Context, def Definition) (context.Context, *Scope, error) {
	c := FromContext(ctx)
	if c == nil {
		c = NewContext()
		ctx = WithContext(ctx, c)
	}

	s := &Scope{
		id:      id.New(),
		def:     def,
		parent:  c.Top(),
		owner:   c,
		state:   ScopeOpen,
		started: time.Now(),
	}

	active := c.active
	var err error

	switch def.Propagation {
	case PropagationRequired, PropagationMandatory, PropagationNested:
		if active == nil {
			if def.Propagation == PropagationMandatory {
				return ctx, nil, apperror.NewIllegalState("no existing transaction found for propagation MANDATORY").
					WithDetail("scope", def.Name)
			}
			if ctx, err = r.begin(ctx, c, s); err != nil {
				return ctx, nil, err
			}
			break
		}
		if !active.IsActive() {
			return ctx, nil, apperror.NewIllegalState("transaction in force is no longer active").
				WithDetail("scope", def.Name).
				WithDetail("propagation", def.Propagation.String())
		}
		s.handle = active
		if def.Propagation == PropagationNested {
			name := c.nextSavepoint()
			if err := active.Savepoint(ctx, name); err != nil {
				logger.Error(ctx, "create savepoint failed", "savepoint", name, "error", err)
				return ctx, nil, apperror.NewResourceFault("savepoint", err)
			}
			s.savepoint = name
		}
		logger.Debug(ctx, "joined existing transaction",
			"scope_id", s.id,
			"scope", def.Name,
			"propagation", def.Propagation,
			"savepoint", s.savepoint,
		)

	case PropagationRequiresNew:
		if active != nil {
			s.suspended = active
			c.active = nil
			logger.Debug(ctx, "suspended transaction", "scope_id", s.id, "scope", def.Name)
		}
		if ctx, err = r.begin(ctx, c, s); err != nil {
			c.active = s.suspended
			return ctx, nil, err
		}

	default:
		return ctx, nil, apperror.NewIllegalState(fmt.Sprintf("unsupported propagation %s", def.Propagation))
	}

	c.push(s)
	ctx = appctx.WithScopeInfo(ctx, &appctx.ScopeInfo{
		ScopeID:     s.id.String(),
		Propagation: def.Propagation.String(),
		Depth:       c.Depth(),
	})
	return ctx, s, nil
}

// begin starts a physical transaction owned by s.
func (r *Resolver) begin(ctx context.Context, c *Context, s *Scope) (context.Context, error) {
	ctx, span := r.tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.name", s.def.Name),
			attribute.String("tx.propagation", s.def.Propagation.String()),
			attribute.String("tx.isolation", string(s.def.Isolation)),
			attribute.Bool("tx.read_only", s.def.ReadOnly),
		))

	h, err := r.resource.Begin(ctx, s.def)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		span.End()
		logger.Error(ctx, "begin transaction failed", "scope", s.def.Name, "error", err)
		return ctx, apperror.NewResourceFault("begin", err)
	}

	s.isNew = true
	s.handle = h
	s.span = span
	c.active = h

	logger.Debug(ctx, "began transaction",
		"scope_id", s.id,
		"scope", s.def.Name,
		"propagation", s.def.Propagation,
		"suspended", s.suspended != nil,
	)
	return ctx, nil
}

// Commit closes s requesting commit.
func (r *Resolver) Commit(ctx context.Context, s *Scope) error {
	return r.close(ctx, s, nil, false)
}

// Rollback closes s requesting rollback. A participating scope only marks the
// physical transaction rollback-only; the owner rolls it back. No
// UnexpectedRollback is raised for an explicit rollback.
func (r *Resolver) Rollback(ctx context.Context, s *Scope) error {
	return r.close(ctx, s, nil, true)
}

// Close closes s with the failure its work produced (nil for normal
// completion). The failure is classified once; an outcome of ROLLBACK marks
// the scope rollback-only.
func (r *Resolver) Close(ctx context.Context, s *Scope, failure error) error {
	return r.close(ctx, s, failure, false)
}

// MarkRollbackOnly marks s, and its ancestors up to the scope owning the
// physical transaction (or savepoint), rollback-only.
func (r *Resolver) MarkRollbackOnly(s *Scope) error {
	if s == nil || s.state != ScopeOpen {
		return apperror.NewScopeMisuse("cannot mark a scope that is not open rollback-only")
	}
	s.markRollbackOnly("marked rollback-only")
	return nil
}

// SetRollbackOnly marks the innermost open scope of ctx's flow rollback-only.
func SetRollbackOnly(ctx context.Context) error {
	s := CurrentScope(ctx)
	if s == nil {
		return apperror.NewIllegalState("no transaction scope in progress")
	}
	s.markRollbackOnly("marked rollback-only")
	return nil
}

func (r *Resolver) close(ctx context.Context, s *Scope, failure error, rollback bool) error {
	if s == nil {
		return apperror.NewScopeMisuse("close called without a scope")
	}
	if s.state != ScopeOpen {
		return apperror.NewScopeMisuse("scope is already closed").
			WithDetail("scope_id", s.id.String())
	}
	c := s.owner
	if c.Top() != s {
		return apperror.NewScopeMisuse("scope is not the innermost open scope").
			WithDetail("scope_id", s.id.String()).
			WithDetail("depth", c.Depth())
	}
	s.state = ScopeClosing

	commitRequested := !rollback
	if failure != nil && r.policy.Classify(failure, s.def) == OutcomeRollback {
		commitRequested = false
		rollback = true
	}
	if rollback {
		cause := "rollback requested"
		if failure != nil {
			cause = failure.Error()
		}
		if s.savepoint != "" {
			s.markLocalRollbackOnly(cause)
		} else {
			s.markRollbackOnly(cause)
		}
	}

	var err error
	switch {
	case s.isNew:
		err = r.finish(ctx, s, commitRequested)
		c.active = s.suspended
		if s.suspended != nil {
			logger.Debug(ctx, "resumed suspended transaction", "scope_id", s.id)
		}
	case s.savepoint != "":
		err = r.finishSavepoint(ctx, s, commitRequested)
		r.recordParticipant(s, failure)
	default:
		r.recordParticipant(s, failure)
		logger.Debug(ctx, "left participating scope",
			"scope_id", s.id,
			"rollback_only", s.rollbackOnly,
		)
	}

	c.pop()
	s.state = ScopeClosed
	return err
}

func (r *Resolver) recordParticipant(s *Scope, failure error) {
	if owner := s.physicalOwner(); owner != nil {
		owner.participants = append(owner.participants, s.participant(failure))
	}
}

// finish commits or rolls back the physical transaction owned by s.
func (r *Resolver) finish(ctx context.Context, s *Scope, commitRequested bool) error {
	// Finalization must complete even when the caller's context is cancelled.
	fctx := context.WithoutCancel(ctx)

	report := Report{
		ScopeID:      s.id,
		Name:         s.def.Name,
		Propagation:  s.def.Propagation,
		Isolation:    s.def.Isolation,
		Participants: s.participants,
		StartedAt:    s.started,
	}

	var err error
	if s.rollbackOnly {
		report.Outcome = OutcomeRollback
		report.Cause = s.cause
		if rbErr := s.handle.Rollback(fctx); rbErr != nil {
			logger.Error(ctx, "rollback failed", "scope_id", s.id, "error", rbErr)
			err = apperror.NewResourceFault("rollback", rbErr)
		} else if commitRequested {
			report.Unexpected = true
			logger.Warn(ctx, "commit requested on rollback-only transaction",
				"scope_id", s.id,
				"scope", s.def.Name,
				"cause", s.cause,
			)
			err = apperror.NewUnexpectedRollback("transaction rolled back because it has been marked as rollback-only").
				WithDetail("scope_id", s.id.String()).
				WithDetail("cause", s.cause)
		} else {
			logger.Debug(ctx, "rolled back transaction", "scope_id", s.id, "cause", s.cause)
		}
	} else {
		report.Outcome = OutcomeCommit
		if cErr := s.handle.Commit(fctx); cErr != nil {
			report.Outcome = OutcomeRollback
			if errors.Is(cErr, ErrCommitRolledBack) {
				report.Unexpected = true
				report.Cause = cErr.Error()
				logger.Warn(ctx, "commit was turned into rollback by the resource", "scope_id", s.id, "error", cErr)
				err = apperror.NewUnexpectedRollback("transaction rolled back by the resource on commit").
					WithDetail("scope_id", s.id.String()).
					WithCause(cErr)
			} else {
				logger.Error(ctx, "commit failed", "scope_id", s.id, "error", cErr)
				err = apperror.NewResourceFault("commit", cErr)
			}
		} else {
			logger.Debug(ctx, "committed transaction", "scope_id", s.id, "participants", len(s.participants))
		}
	}

	report.Duration = time.Since(s.started)
	report.Err = err
	r.endSpan(s, report)
	if r.observer != nil {
		r.observer.TransactionFinished(fctx, report)
	}
	return err
}

func (r *Resolver) finishSavepoint(ctx context.Context, s *Scope, commitRequested bool) error {
	if !s.rollbackOnly {
		if err := s.handle.ReleaseSavepoint(ctx, s.savepoint); err != nil {
			logger.Error(ctx, "release savepoint failed", "savepoint", s.savepoint, "error", err)
			return apperror.NewResourceFault("release savepoint", err)
		}
		return nil
	}

	if err := s.handle.RollbackToSavepoint(context.WithoutCancel(ctx), s.savepoint); err != nil {
		logger.Error(ctx, "rollback to savepoint failed", "savepoint", s.savepoint, "error", err)
		return apperror.NewResourceFault("rollback to savepoint", err)
	}
	logger.Debug(ctx, "rolled back to savepoint", "savepoint", s.savepoint, "cause", s.cause)
	if commitRequested {
		return apperror.NewUnexpectedRollback("nested scope rolled back to its savepoint because it has been marked as rollback-only").
			WithDetail("scope_id", s.id.String()).
			WithDetail("cause", s.cause)
	}
	return nil
}

func (r *Resolver) endSpan(s *Scope, report Report) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.String("tx.outcome", report.Outcome.String()),
		attribute.Int("tx.participants", len(report.Participants)),
		attribute.Bool("tx.unexpected_rollback", report.Unexpected),
	)
	if report.Err != nil {
		s.span.RecordError(report.Err)
		s.span.SetStatus(codes.Error, report.Outcome.String())
	}
	s.span.End()
}

// WithScope opens a scope for def, runs fn inside it and closes the scope with
// fn's error. fn's error is returned unchanged when closing succeeds; a close
// failure is joined in front of it. A panic in fn rolls the scope back and is
// re-raised.
func (r *Resolver) WithScope(ctx context.Context, def Definition, fn func(ctx context.Context) error) error {
	scopeCtx, s, err := r.Open(ctx, def)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			r.abandon(scopeCtx, s)
			panic(p)
		}
	}()

	failure := fn(scopeCtx)
	closeErr := r.Close(scopeCtx, s, failure)
	switch {
	case closeErr == nil:
		return failure
	case failure == nil:
		return closeErr
	default:
		return errors.Join(closeErr, failure)
	}
}

// abandon rolls back every scope still open above s, innermost first, and
// then s itself. Scopes left half-closed are popped without touching their
// handles.
func (r *Resolver) abandon(ctx context.Context, s *Scope) {
	c := s.owner
	for s.state != ScopeClosed {
		top := c.Top()
		if top == nil {
			return
		}
		if top.state != ScopeOpen {
			if top.isNew {
				c.active = top.suspended
			}
			c.pop()
			top.state = ScopeClosed
			continue
		}
		if err := r.close(ctx, top, nil, true); err != nil {
			logger.Error(ctx, "rollback of abandoned scope failed",
				"scope_id", top.id,
				"scope", top.def.Name,
				"error", err,
			)
		}
	}
}

// RunInTransaction executes fn within a REQUIRED scope.
func (r *Resolver) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.WithScope(ctx, DefaultDefinition(), fn)
}
