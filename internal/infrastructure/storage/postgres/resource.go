package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"txscope/internal/core/tx"
	"txscope/pkg/logger"
)

// Compile-time check that Resource implements tx.Resource.
var _ tx.Resource = (*Resource)(nil)

// Querier is implemented by pgx transactions, pools and connections.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can begin transactions (*Pool, pgxmock pools).
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ResourceConfig holds defaults applied when a definition leaves them unset.
type ResourceConfig struct {
	// Isolation used when the definition has none ("" = server default).
	Isolation pgx.TxIsoLevel

	// StatementTimeout protects against long-running queries (0 = none).
	StatementTimeout time.Duration
}

// DefaultResourceConfig returns production-safe defaults.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		Isolation:        pgx.ReadCommitted,
		StatementTimeout: 30 * time.Second,
	}
}

// Resource begins PostgreSQL transactions for the scope resolver.
type Resource struct {
	db  DB
	cfg ResourceConfig
}

// NewResource creates a resource over db.
func NewResource(db DB, cfg ResourceConfig) *Resource {
	return &Resource{db: db, cfg: cfg}
}

// Begin starts a database transaction honoring the definition's isolation,
// access mode and statement timeout.
func (r *Resource) Begin(ctx context.Context, def tx.Definition) (tx.Handle, error) {
	opts := pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(def.Isolation)}
	if opts.IsoLevel == "" {
		opts.IsoLevel = r.cfg.Isolation
	}
	if def.ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}

	pgTx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	timeout := def.StatementTimeout
	if timeout == 0 {
		timeout = r.cfg.StatementTimeout
	}
	if timeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds()))
		if err != nil {
			if rbErr := pgTx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Error(ctx, "rollback after failed setup", "error", rbErr)
			}
			return nil, fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	return &Handle{owner: r, tx: pgTx, state: tx.StateActive}, nil
}

// Querier returns the transaction of this resource in force for ctx, or the
// pool when there is none. Repositories work both inside and outside scopes.
func (r *Resource) Querier(ctx context.Context) Querier {
	if h, ok := tx.ActiveHandle(ctx).(*Handle); ok && h.owner == r && h.IsActive() {
		return h.tx
	}
	return r.db
}

// Handle is one PostgreSQL transaction.
type Handle struct {
	owner *Resource
	tx    pgx.Tx
	state tx.State
}

// Compile-time check that Handle implements tx.Handle.
var _ tx.Handle = (*Handle)(nil)

// Tx returns the underlying pgx transaction.
func (h *Handle) Tx() pgx.Tx { return h.tx }

// IsActive reports whether the transaction can still be used.
func (h *Handle) IsActive() bool { return h.state == tx.StateActive }

// Commit commits the transaction. A commit the server answered with ROLLBACK
// (the transaction had already failed) returns tx.ErrCommitRolledBack.
func (h *Handle) Commit(ctx context.Context) error {
	err := h.tx.Commit(ctx)
	switch {
	case err == nil:
		h.state = tx.StateCommitted
		return nil
	case errors.Is(err, pgx.ErrTxCommitRollback):
		h.state = tx.StateRolledBack
		return fmt.Errorf("%w: %w", tx.ErrCommitRolledBack, err)
	default:
		h.state = tx.StateInactive
		return fmt.Errorf("commit transaction: %w", err)
	}
}

// Rollback rolls the transaction back.
func (h *Handle) Rollback(ctx context.Context) error {
	if err := h.tx.Rollback(ctx); err != nil {
		h.state = tx.StateInactive
		return fmt.Errorf("rollback transaction: %w", err)
	}
	h.state = tx.StateRolledBack
	return nil
}

// Savepoint creates a savepoint.
func (h *Handle) Savepoint(ctx context.Context, name string) error {
	return h.exec(ctx, "SAVEPOINT ", name)
}

// RollbackToSavepoint undoes the work done after the savepoint.
func (h *Handle) RollbackToSavepoint(ctx context.Context, name string) error {
	return h.exec(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

// ReleaseSavepoint releases the savepoint, keeping its work.
func (h *Handle) ReleaseSavepoint(ctx context.Context, name string) error {
	return h.exec(ctx, "RELEASE SAVEPOINT ", name)
}

func (h *Handle) exec(ctx context.Context, stmt, savepoint string) error {
	sql := stmt + pgx.Identifier{savepoint}.Sanitize()
	if _, err := h.tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("%s: %w", sql, err)
	}
	return nil
}
