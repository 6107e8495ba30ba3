// Package order_repo provides the PostgreSQL implementation of order.Repository.
package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/domain/order"
	"txscope/internal/infrastructure/storage/postgres"
)

const orderTable = "orders"

// OrderRepo implements order.Repository.
type OrderRepo struct {
	res        *postgres.Resource
	selectCols []string
}

// Compile-time check that OrderRepo implements order.Repository.
var _ order.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates a new order repository.
func NewOrderRepo(res *postgres.Resource) *OrderRepo {
	return &OrderRepo{
		res:        res,
		selectCols: postgres.Columns[order.Order](),
	}
}

// Save inserts an order.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	sql, args, err := postgres.Builder().
		Insert(orderTable).
		SetMap(postgres.Values(o)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.res.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", orderTable, err)
	}
	return nil
}

// UpdatePayStatus changes the payment state of an order.
func (r *OrderRepo) UpdatePayStatus(ctx context.Context, orderID id.ID, status order.PayStatus) error {
	sql, args, err := postgres.Builder().
		Update(orderTable).
		Set("pay_status", string(status)).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.res.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", orderTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order", orderID.String())
	}
	return nil
}

// GetByID retrieves an order by id.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	sql, args, err := postgres.Builder().
		Select(r.selectCols...).
		From(orderTable).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o order.Order
	if err := pgxscan.Get(ctx, r.res.Querier(ctx), &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}
