package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txscope/internal/core/apperror"
	"txscope/internal/core/tx"
	"txscope/internal/core/types"
	"txscope/internal/domain/order"
	"txscope/internal/infrastructure/storage/memory"
)

func newService(def tx.Definition) (*order.Service, *memory.Store) {
	store := memory.NewStore()
	svc := order.NewService(tx.NewResolver(store), memory.NewOrderRepo(store), def)
	return svc, store
}

func TestPlace_Complete(t *testing.T) {
	svc, store := newService(tx.Definition{})
	ctx := context.Background()

	o, err := svc.Place(ctx, "normal", types.MustMoney("19.99"))
	require.NoError(t, err)
	assert.Equal(t, order.PayStatusComplete, o.PayStatus)

	saved, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PayStatusComplete, saved.PayStatus)
	assert.True(t, types.MustMoney("19.99").Equal(saved.Amount))
	assert.Equal(t, memory.Stats{Begins: 1, Commits: 1}, store.Stats())
}

func TestPlace_PaymentFaultRollsBack(t *testing.T) {
	svc, store := newService(tx.Definition{})

	o, err := svc.Place(context.Background(), order.UsernameFault, types.MustMoney("5"))
	require.Error(t, err)
	assert.Nil(t, o)
	kind, _ := tx.KindOf(err)
	assert.Equal(t, order.KindPaymentSystem, kind)
	assert.Equal(t, memory.Stats{Begins: 1, Rollbacks: 1}, store.Stats())
}

func TestPlace_NotEnoughMoneyCommitsWaitingOrder(t *testing.T) {
	svc, store := newService(tx.Definition{})
	ctx := context.Background()

	o, err := svc.Place(ctx, order.UsernameInsufficientFunds, types.MustMoney("1000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, order.ErrNotEnoughMoney)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotEnoughMoney))
	require.NotNil(t, o)

	saved, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PayStatusWaiting, saved.PayStatus)
	assert.Equal(t, memory.Stats{Begins: 1, Commits: 1}, store.Stats())
}

func TestPlace_RollbackForNotEnoughMoney(t *testing.T) {
	svc, store := newService(tx.Definition{RollbackFor: []tx.Kind{order.KindNotEnoughMoney}})

	o, err := svc.Place(context.Background(), order.UsernameInsufficientFunds, types.MustMoney("1000"))
	require.Error(t, err)
	assert.Nil(t, o)
	assert.ErrorIs(t, err, order.ErrNotEnoughMoney)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotEnoughMoney))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.NotContains(t, appErr.Details, "order_id")
	assert.Equal(t, memory.Stats{Begins: 1, Rollbacks: 1}, store.Stats())
}

func TestPlace_Validation(t *testing.T) {
	svc, store := newService(tx.Definition{})

	_, err := svc.Place(context.Background(), "neg", types.MustMoney("-1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, memory.Stats{}, store.Stats())
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(tx.Definition{})

	_, err := svc.Get(context.Background(), order.NewOrder("x", types.Zero()).ID)
	assert.True(t, apperror.IsNotFound(err))
}
