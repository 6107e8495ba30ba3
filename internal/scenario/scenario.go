// Package scenario replays the reference propagation scenarios against the
// in-memory store and checks the physical begin/commit/rollback counts.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"txscope/internal/core/apperror"
	"txscope/internal/core/tx"
	"txscope/internal/infrastructure/storage/memory"
	"txscope/pkg/logger"
)

// KindRecoverable is the expected failure kind used by the classification scenario.
var KindRecoverable = tx.ExpectedKind("recoverable")

var kindBroken = tx.FaultKind("broken")

// Scenario is one replayable propagation case.
type Scenario struct {
	Name        string
	Description string
	Want        memory.Stats
	Run         func(ctx context.Context, txm *tx.Resolver) error
}

// Result is the outcome of one scenario run.
type Result struct {
	Name   string
	Stats  memory.Stats
	Want   memory.Stats
	Err    error
	Passed bool
}

// All returns the scenarios in order.
func All() []Scenario {
	return []Scenario{
		{
			Name:        "required-commit",
			Description: "a single REQUIRED scope commits once",
			Want:        memory.Stats{Begins: 1, Commits: 1},
			Run:         requiredCommit,
		},
		{
			Name:        "required-join",
			Description: "an inner REQUIRED scope joins the outer transaction",
			Want:        memory.Stats{Begins: 1, Commits: 1},
			Run:         requiredJoin,
		},
		{
			Name:        "required-inner-failure",
			Description: "an inner failure marks the shared transaction rollback-only",
			Want:        memory.Stats{Begins: 1, Rollbacks: 1},
			Run:         requiredInnerFailure,
		},
		{
			Name:        "requires-new-inner-failure",
			Description: "a failing REQUIRES_NEW scope rolls back alone and the outer commits",
			Want:        memory.Stats{Begins: 2, Commits: 1, Rollbacks: 1},
			Run:         requiresNewInnerFailure,
		},
		{
			Name:        "expected-kind-override",
			Description: "an expected failure commits unless its kind is listed in RollbackFor",
			Want:        memory.Stats{Begins: 2, Commits: 1, Rollbacks: 1},
			Run:         expectedKindOverride,
		},
	}
}

// Find returns the scenario named name.
func Find(name string) (Scenario, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Run replays s on a fresh store.
func Run(ctx context.Context, s Scenario) Result {
	store := memory.NewStore()
	txm := tx.NewResolver(store)

	err := s.Run(ctx, txm)
	stats := store.Stats()
	res := Result{
		Name:  s.Name,
		Stats: stats,
		Want:  s.Want,
		Err:   err,
	}
	res.Passed = err == nil && stats == s.Want

	logger.Info(ctx, "scenario finished",
		"scenario", s.Name,
		"passed", res.Passed,
		"begins", stats.Begins,
		"commits", stats.Commits,
		"rollbacks", stats.Rollbacks,
		"error", err,
	)
	return res
}

func requiredCommit(ctx context.Context, txm *tx.Resolver) error {
	ctx, s, err := txm.Open(ctx, tx.Named("outer"))
	if err != nil {
		return err
	}
	if !s.IsNew() {
		return errors.New("outermost scope does not own its transaction")
	}
	return txm.Commit(ctx, s)
}

func requiredJoin(ctx context.Context, txm *tx.Resolver) error {
	ctx, outer, err := txm.Open(ctx, tx.Named("outer"))
	if err != nil {
		return err
	}
	innerCtx, inner, err := txm.Open(ctx, tx.Named("inner"))
	if err != nil {
		return err
	}
	if inner.IsNew() || inner.Handle() != outer.Handle() {
		return errors.New("inner REQUIRED scope did not join the outer transaction")
	}
	if err := txm.Commit(innerCtx, inner); err != nil {
		return err
	}
	return txm.Commit(ctx, outer)
}

func requiredInnerFailure(ctx context.Context, txm *tx.Resolver) error {
	ctx, outer, err := txm.Open(ctx, tx.Named("outer"))
	if err != nil {
		return err
	}
	innerCtx, inner, err := txm.Open(ctx, tx.Named("inner"))
	if err != nil {
		return err
	}
	if err := txm.Close(innerCtx, inner, tx.NewFailure(kindBroken, "inner work failed")); err != nil {
		return err
	}
	if !outer.IsRollbackOnly() {
		return errors.New("inner failure did not mark the outer scope rollback-only")
	}
	err = txm.Commit(ctx, outer)
	if !apperror.IsUnexpectedRollback(err) {
		return fmt.Errorf("outer commit: want UNEXPECTED_ROLLBACK, got %v", err)
	}
	return nil
}

func requiresNewInnerFailure(ctx context.Context, txm *tx.Resolver) error {
	ctx, outer, err := txm.Open(ctx, tx.Named("outer"))
	if err != nil {
		return err
	}
	innerCtx, inner, err := txm.Open(ctx, tx.RequiresNew("inner"))
	if err != nil {
		return err
	}
	if !inner.IsNew() || !inner.Suspended() {
		return errors.New("REQUIRES_NEW scope did not suspend the outer transaction")
	}
	if err := txm.Close(innerCtx, inner, tx.NewFailure(kindBroken, "inner work failed")); err != nil {
		return err
	}
	if tx.ActiveHandle(ctx) != outer.Handle() {
		return errors.New("outer transaction was not resumed")
	}
	if outer.IsRollbackOnly() {
		return errors.New("REQUIRES_NEW failure leaked into the outer scope")
	}
	return txm.Commit(ctx, outer)
}

func expectedKindOverride(ctx context.Context, txm *tx.Resolver) error {
	failure := tx.NewFailure(KindRecoverable, "recoverable condition")

	def := tx.Named("default-policy")
	if got := txm.Policy().Classify(failure, def); got != tx.OutcomeCommit {
		return fmt.Errorf("default classification: want commit, got %s", got)
	}
	if err := txm.WithScope(ctx, def, func(context.Context) error { return failure }); !errors.Is(err, failure) {
		return fmt.Errorf("default policy scope: want the failure back, got %v", err)
	}

	override := tx.Named("override")
	override.RollbackFor = []tx.Kind{KindRecoverable}
	if got := txm.Policy().Classify(failure, override); got != tx.OutcomeRollback {
		return fmt.Errorf("override classification: want rollback, got %s", got)
	}
	if err := txm.WithScope(ctx, override, func(context.Context) error { return failure }); !errors.Is(err, failure) {
		return fmt.Errorf("override scope: want the failure back, got %v", err)
	}
	return nil
}
