package order

import (
	"context"
	"errors"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/core/tx"
	"txscope/internal/core/types"
	"txscope/pkg/logger"
)

// Service places orders.
type Service struct {
	txm  tx.Manager
	repo Repository
	def  tx.Definition
}

// NewService creates a new order service. def configures the placement scope;
// its RollbackFor can turn ErrNotEnoughMoney into a rollback.
func NewService(txm tx.Manager, repo Repository, def tx.Definition) *Service {
	if def.Name == "" {
		def.Name = "order.place"
	}
	return &Service{txm: txm, repo: repo, def: def}
}

// Place saves the order and pays for it in one scope.
//
// A payment system fault rolls the order back. When the customer cannot pay,
// the failure matches ErrNotEnoughMoney. If the scope committed, the order is
// returned with PayStatusWaiting; if the policy rolled it back (for example
// RollbackFor lists KindNotEnoughMoney) no order is returned.
func (s *Service) Place(ctx context.Context, username string, amount types.Money) (*Order, error) {
	o := NewOrder(username, amount)
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.WithScope(ctx, s.def, func(ctx context.Context) error {
		logger.Info(ctx, "saving order", "order_id", o.ID, "username", o.Username)
		if err := s.repo.Save(ctx, o); err != nil {
			return err
		}
		return s.pay(ctx, o)
	})
	if err != nil && !errors.Is(err, ErrNotEnoughMoney) {
		return nil, err
	}
	if err != nil {
		if _, getErr := s.repo.GetByID(ctx, o.ID); apperror.IsNotFound(getErr) {
			logger.Info(ctx, "waiting order was rolled back", "order_id", o.ID)
			return nil, NewNotEnoughMoneyRolledBack()
		}
	}
	return o, err
}

func (s *Service) pay(ctx context.Context, o *Order) error {
	logger.Info(ctx, "processing payment", "order_id", o.ID)
	switch o.Username {
	case UsernameFault:
		return tx.NewFailure(KindPaymentSystem, "payment system is unavailable")
	case UsernameInsufficientFunds:
		logger.Info(ctx, "not enough money, order waits for payment", "order_id", o.ID)
		if err := s.setStatus(ctx, o, PayStatusWaiting); err != nil {
			return err
		}
		return NewNotEnoughMoney(o.ID)
	default:
		return s.setStatus(ctx, o, PayStatusComplete)
	}
}

func (s *Service) setStatus(ctx context.Context, o *Order, status PayStatus) error {
	if err := s.repo.UpdatePayStatus(ctx, o.ID, status); err != nil {
		return err
	}
	o.PayStatus = status
	return nil
}

// Get returns the order by id.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}
