package memory

import (
	"context"
	"errors"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/domain/order"
)

const tableOrders = "orders"

// OrderRepo implements order.Repository over a Store.
type OrderRepo struct {
	store *Store
}

// Compile-time check that OrderRepo implements order.Repository.
var _ order.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates a new order repository.
func NewOrderRepo(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

// Save stores the order keyed by id.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	return r.store.Put(ctx, tableOrders, o.ID.String(), o)
}

// UpdatePayStatus changes the payment state of a saved order.
func (r *OrderRepo) UpdatePayStatus(ctx context.Context, orderID id.ID, status order.PayStatus) error {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	o.PayStatus = status
	return r.store.Put(ctx, tableOrders, orderID.String(), o)
}

// GetByID returns the order by id.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	var o order.Order
	if err := r.store.Get(ctx, tableOrders, orderID.String(), &o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}
	return &o, nil
}
