package member_repo_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txscope/internal/core/apperror"
	"txscope/internal/core/tx"
	"txscope/internal/domain/member"
	"txscope/internal/infrastructure/storage/postgres"
	"txscope/internal/infrastructure/storage/postgres/member_repo"
)

func newRepos(t *testing.T) (pgxmock.PgxPoolIface, *postgres.Resource) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, postgres.NewResource(mockPool, postgres.ResourceConfig{})
}

func TestMemberRepo_Save(t *testing.T) {
	t.Run("Should insert member", func(t *testing.T) {
		mockPool, res := newRepos(t)
		repo := member_repo.NewMemberRepo(res)
		m := member.NewMember("alice")

		mockPool.ExpectExec("INSERT INTO members").
			WithArgs(m.CreatedAt, m.ID, m.Username).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Save(context.Background(), m))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map unique violation to duplicate", func(t *testing.T) {
		mockPool, res := newRepos(t)
		repo := member_repo.NewMemberRepo(res)

		mockPool.ExpectExec("INSERT INTO members").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "alice").
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

		err := repo.Save(context.Background(), member.NewMember("alice"))
		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMemberRepo_FindByUsername(t *testing.T) {
	t.Run("Should find member", func(t *testing.T) {
		mockPool, res := newRepos(t)
		repo := member_repo.NewMemberRepo(res)
		m := member.NewMember("alice")

		rows := mockPool.NewRows(postgres.Columns[member.Member]()).
			AddRow(m.ID, m.Username, m.CreatedAt)
		mockPool.ExpectQuery("SELECT (.+) FROM members WHERE username = \\$1").
			WithArgs("alice").
			WillReturnRows(rows)

		found, err := repo.FindByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, m.ID, found.ID)
		assert.Equal(t, "alice", found.Username)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return not found", func(t *testing.T) {
		mockPool, res := newRepos(t)
		repo := member_repo.NewMemberRepo(res)

		mockPool.ExpectQuery("SELECT (.+) FROM members").
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.FindByUsername(context.Background(), "ghost")
		assert.True(t, apperror.IsNotFound(err))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLogRepo_SaveInsideScope(t *testing.T) {
	mockPool, res := newRepos(t)
	repo := member_repo.NewLogRepo(res)
	l := member.NewLog("alice")

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO member_logs").
		WithArgs(l.CreatedAt, l.ID, l.Message).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	err := tx.NewResolver(res).RunInTransaction(context.Background(), func(ctx context.Context) error {
		return repo.Save(ctx, l)
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLogRepo_FindByMessage(t *testing.T) {
	mockPool, res := newRepos(t)
	repo := member_repo.NewLogRepo(res)
	l := member.NewLog("alice")

	rows := mockPool.NewRows(postgres.Columns[member.Log]()).
		AddRow(l.ID, l.Message, l.CreatedAt)
	mockPool.ExpectQuery("SELECT (.+) FROM member_logs WHERE message = \\$1").
		WithArgs("alice").
		WillReturnRows(rows)

	found, err := repo.FindByMessage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, l.ID, found.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
