// Package order provides order placement with payment, where a declined
// payment is an expected failure that still commits the order.
package order

import (
	"context"
	"strings"
	"time"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/core/tx"
	"txscope/internal/core/types"
)

// PayStatus is the payment state of an order.
type PayStatus string

const (
	PayStatusPending  PayStatus = ""
	PayStatusComplete PayStatus = "complete"
	PayStatusWaiting  PayStatus = "waiting"
)

// Usernames that drive the payment outcome.
const (
	UsernameFault             = "fault"
	UsernameInsufficientFunds = "insufficient-funds"
)

var (
	// KindNotEnoughMoney is an expected failure: the order is kept and waits for payment.
	KindNotEnoughMoney = tx.ExpectedKind("not_enough_money")

	// KindPaymentSystem is a fault of the payment system.
	KindPaymentSystem = tx.FaultKind("payment_system")

	// ErrNotEnoughMoney matches, via errors.Is, every not-enough-money failure.
	ErrNotEnoughMoney = tx.NewFailure(KindNotEnoughMoney, "not enough money")
)

// NewNotEnoughMoney creates the failure returned for an order that could not be paid.
func NewNotEnoughMoney(orderID id.ID) *tx.Failure {
	return tx.WrapFailure(KindNotEnoughMoney,
		apperror.NewBusinessRule(apperror.CodeNotEnoughMoney, "not enough money, pay to the separate account").
			WithDetail("order_id", orderID.String()))
}

// NewNotEnoughMoneyRolledBack creates the failure returned when the unpaid
// order was rolled back and no longer exists.
func NewNotEnoughMoneyRolledBack() *tx.Failure {
	return tx.WrapFailure(KindNotEnoughMoney,
		apperror.NewBusinessRule(apperror.CodeNotEnoughMoney, "not enough money, order was not saved"))
}

// Order is a customer order.
type Order struct {
	ID        id.ID       `db:"id" json:"id"`
	Username  string      `db:"username" json:"username"`
	Amount    types.Money `db:"amount" json:"amount"`
	PayStatus PayStatus   `db:"pay_status" json:"payStatus"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// NewOrder creates an Order with a fresh id.
func NewOrder(username string, amount types.Money) *Order {
	return &Order{
		ID:        id.New(),
		Username:  strings.TrimSpace(username),
		Amount:    amount,
		PayStatus: PayStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks required fields.
func (o *Order) Validate(_ context.Context) error {
	if o.Username == "" {
		return apperror.NewValidation("username is required").
			WithDetail("field", "username")
	}
	if o.Amount.IsNegative() {
		return apperror.NewValidation("amount must not be negative").
			WithDetail("field", "amount").
			WithDetail("value", o.Amount.String())
	}
	return nil
}
