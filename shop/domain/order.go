package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// orderTransitions lists every allowed status change. Terminal states have no entry.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransition reports whether the table allows moving from s to target.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Order is a durable checkout attempt with fixed line items.
type Order struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Status      OrderStatus     `db:"status"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	CreatedAt   time.Time       `db:"created_at"`

	Items []OrderItem `db:"-"`
}

// OrderItem snapshots the course price at checkout time.
type OrderItem struct {
	ID       int64           `db:"id"`
	OrderID  int64           `db:"order_id"`
	CourseID int64           `db:"course_id"`
	Price    decimal.Decimal `db:"price"`

	// Joined from the course for rendering and delivery.
	CourseTitle string `db:"course_title"`
	MaterialURL string `db:"material_url"`
}

// SumItems returns the exact decimal sum of the item prices.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

// Transition validates moving the order to target.
// It returns applied=false with a nil error when the order already sits in
// target, which makes repeated terminal events harmless duplicates.
func (o Order) Transition(target OrderStatus) (applied bool, err error) {
	if o.Status == target && o.Status.Terminal() {
		return false, nil
	}
	if !o.Status.CanTransition(target) {
		return false, &TransitionError{OrderID: o.ID, From: o.Status, To: target}
	}
	return true, nil
}
