package order

import (
	"context"

	"txscope/internal/core/id"
)

// Repository defines the interface for Order persistence.
type Repository interface {
	Save(ctx context.Context, o *Order) error

	// UpdatePayStatus changes the payment state of a saved order.
	UpdatePayStatus(ctx context.Context, orderID id.ID, status PayStatus) error

	// GetByID returns NOT_FOUND when the order does not exist.
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
}
