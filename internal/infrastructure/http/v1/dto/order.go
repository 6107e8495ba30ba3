package dto

import (
	"time"

	"txscope/internal/domain/order"
)

// PlaceOrderRequest is the body of POST /v1/orders.
type PlaceOrderRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Amount   string `json:"amount"`
}

// OrderResponse is an order.
type OrderResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Amount    string    `json:"amount"`
	PayStatus string    `json:"payStatus"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromOrder converts an order.
func FromOrder(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:        o.ID.String(),
		Username:  o.Username,
		Amount:    o.Amount.StringFixed(2),
		PayStatus: string(o.PayStatus),
		CreatedAt: o.CreatedAt,
	}
}
