package postgres

import (
	"context"
	"fmt"

	"txscope/pkg/logger"
)

// schema creates the tables used by the repositories and the journal.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id         UUID PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS member_logs (
		id         UUID PRIMARY KEY,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_member_logs_message ON member_logs (message)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         UUID PRIMARY KEY,
		username   TEXT NOT NULL,
		amount     NUMERIC(15,2) NOT NULL DEFAULT 0,
		pay_status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sys_tx_journal (
		id                      UUID PRIMARY KEY,
		scope_id                UUID NOT NULL,
		name                    TEXT NOT NULL,
		propagation             TEXT NOT NULL,
		isolation               TEXT NOT NULL DEFAULT '',
		outcome                 TEXT NOT NULL,
		unexpected              BOOLEAN NOT NULL DEFAULT false,
		cause                   TEXT NOT NULL DEFAULT '',
		participants            JSONB,
		participants_compressed BYTEA,
		compression_algo        TEXT NOT NULL DEFAULT 'none',
		error                   TEXT NOT NULL DEFAULT '',
		started_at              TIMESTAMPTZ NOT NULL,
		duration_ms             BIGINT NOT NULL,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_tx_journal_created_at ON sys_tx_journal (created_at DESC)`,
}

// Migrate creates missing tables. It is idempotent.
func Migrate(ctx context.Context, db Querier) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	logger.Info(ctx, "database schema ready", "statements", len(schema))
	return nil
}
