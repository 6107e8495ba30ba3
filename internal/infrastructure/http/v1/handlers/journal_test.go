package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txscope/internal/core/id"
	"txscope/internal/core/tx"
	"txscope/internal/infrastructure/storage/memory"
	"txscope/internal/infrastructure/storage/postgres"
)

func TestPostgresJournal_Recent(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	j, err := postgres.NewJournal(mockPool, 0)
	require.NoError(t, err)

	scopeID, memberScope := id.New(), id.New()
	participants := json.RawMessage(`[{"scopeId":"` + memberScope.String() + `","name":"member.save","propagation":"REQUIRED"}]`)
	started := time.Now().UTC()

	rows := mockPool.NewRows(postgres.Columns[postgres.JournalEntry]()).
		AddRow(id.New(), scopeID, "member.join", "REQUIRED", "", "rollback",
			true, "log_failure", participants, nil, postgres.CompressionNone,
			"", started, int64(3), started)
	mockPool.ExpectQuery("SELECT (.+) FROM sys_tx_journal ORDER BY created_at DESC LIMIT 5").
		WillReturnRows(rows)

	items, err := PostgresJournal(j).Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, scopeID.String(), item.ScopeID)
	assert.Equal(t, "rollback", item.Outcome)
	assert.True(t, item.Unexpected)
	require.Len(t, item.Participants, 1)
	assert.Equal(t, memberScope, item.Participants[0].ScopeID)
	assert.Equal(t, tx.PropagationRequired, item.Participants[0].Propagation)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemoryJournal_Recent(t *testing.T) {
	j := memory.NewJournal(10)
	ctx := context.Background()
	j.TransactionFinished(ctx, tx.Report{ScopeID: id.New(), Name: "first", Outcome: tx.OutcomeCommit})
	j.TransactionFinished(ctx, tx.Report{ScopeID: id.New(), Name: "second", Outcome: tx.OutcomeRollback})

	items, err := MemoryJournal(j).Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Name)
	assert.Equal(t, "rollback", items[0].Outcome)
	assert.Equal(t, "first", items[1].Name)
}
