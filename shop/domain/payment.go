package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors the provider-side payment state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// OrderStatus maps a terminal payment status to the order status it drives.
func (s PaymentStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case PaymentSucceeded:
		return OrderPaid, true
	case PaymentCanceled:
		return OrderCancelled, true
	}
	return "", false
}

// Payment links one order to one provider transaction.
type Payment struct {
	ID         int64           `db:"id"`
	OrderID    int64           `db:"order_id"`
	ExternalID string          `db:"external_id"`
	Amount     decimal.Decimal `db:"amount"`
	Status     PaymentStatus   `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	PaidAt     *time.Time      `db:"paid_at"`
}
