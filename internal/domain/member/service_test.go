package member_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txscope/internal/core/apperror"
	"txscope/internal/core/tx"
	"txscope/internal/domain/member"
	"txscope/internal/infrastructure/storage/memory"
)

type fixture struct {
	store *memory.Store
	svc   *member.Service
}

func newFixture(logPropagation tx.Propagation) *fixture {
	store := memory.NewStore()
	svc := member.NewService(
		tx.NewResolver(store),
		memory.NewMemberRepo(store),
		memory.NewLogRepo(store),
		member.Config{LogPropagation: logPropagation},
	)
	return &fixture{store: store, svc: svc}
}

func (f *fixture) memberExists(t *testing.T, username string) bool {
	t.Helper()
	_, err := f.svc.FindMember(context.Background(), username)
	if apperror.IsNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (f *fixture) logExists(t *testing.T, message string) bool {
	t.Helper()
	_, err := f.svc.FindLog(context.Background(), message)
	if apperror.IsNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

var errLogFailure = tx.NewFailure(member.KindLogFailure, "")

func TestJoinV1_Success(t *testing.T) {
	f := newFixture(tx.PropagationRequired)

	require.NoError(t, f.svc.JoinV1(context.Background(), "alice"))

	assert.True(t, f.memberExists(t, "alice"))
	assert.True(t, f.logExists(t, "alice"))
	assert.Equal(t, memory.Stats{Begins: 2, Commits: 2}, f.store.Stats())
}

func TestJoinV1_LogFailureKeepsMember(t *testing.T) {
	f := newFixture(tx.PropagationRequired)
	username := "log-failure-bob"

	err := f.svc.JoinV1(context.Background(), username)
	assert.ErrorIs(t, err, errLogFailure)

	assert.True(t, f.memberExists(t, username))
	assert.False(t, f.logExists(t, username))
	assert.Equal(t, memory.Stats{Begins: 2, Commits: 1, Rollbacks: 1}, f.store.Stats())
}

func TestJoin_SinglePhysicalTransaction(t *testing.T) {
	f := newFixture(tx.PropagationRequired)

	require.NoError(t, f.svc.Join(context.Background(), "carol"))

	assert.True(t, f.memberExists(t, "carol"))
	assert.True(t, f.logExists(t, "carol"))
	assert.Equal(t, memory.Stats{Begins: 1, Commits: 1}, f.store.Stats())
}

func TestJoin_LogFailureRollsBackEverything(t *testing.T) {
	f := newFixture(tx.PropagationRequired)
	username := "log-failure-dave"

	err := f.svc.Join(context.Background(), username)
	assert.ErrorIs(t, err, errLogFailure)
	assert.False(t, apperror.IsUnexpectedRollback(err), "failure reaches the owner, rollback is expected")

	assert.False(t, f.memberExists(t, username))
	assert.False(t, f.logExists(t, username))
	assert.Equal(t, memory.Stats{Begins: 1, Rollbacks: 1}, f.store.Stats())
}

func TestJoinV2_RecoveredLogFailureIsUnexpectedRollback(t *testing.T) {
	f := newFixture(tx.PropagationRequired)
	username := "log-failure-erin"

	err := f.svc.JoinV2(context.Background(), username)
	require.Error(t, err)
	assert.True(t, apperror.IsUnexpectedRollback(err))

	assert.False(t, f.memberExists(t, username))
	assert.False(t, f.logExists(t, username))
	assert.Equal(t, memory.Stats{Begins: 1, Rollbacks: 1}, f.store.Stats())
}

func TestJoinV2_RequiresNewLogIsolatesFailure(t *testing.T) {
	f := newFixture(tx.PropagationRequiresNew)
	username := "log-failure-frank"

	require.NoError(t, f.svc.JoinV2(context.Background(), username))

	assert.True(t, f.memberExists(t, username))
	assert.False(t, f.logExists(t, username))
	assert.Equal(t, memory.Stats{Begins: 2, Commits: 1, Rollbacks: 1}, f.store.Stats())
}

func TestJoin_RequiresNewLogFailureStillFailsJoin(t *testing.T) {
	f := newFixture(tx.PropagationRequiresNew)
	username := "log-failure-grace"

	err := f.svc.Join(context.Background(), username)
	assert.ErrorIs(t, err, errLogFailure)

	assert.False(t, f.memberExists(t, username))
	assert.False(t, f.logExists(t, username))
	assert.Equal(t, memory.Stats{Begins: 2, Rollbacks: 2}, f.store.Stats())
}

func TestJoin_DuplicateUsername(t *testing.T) {
	f := newFixture(tx.PropagationRequired)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, "heidi"))

	err := f.svc.Join(ctx, "heidi")
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestJoin_Validation(t *testing.T) {
	f := newFixture(tx.PropagationRequired)

	err := f.svc.Join(context.Background(), "   ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, memory.Stats{}, f.store.Stats())
}
