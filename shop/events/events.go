// Package events publishes order lifecycle events for downstream consumers.
// Publishing is best effort: the order state is already committed when an
// event goes out.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
)

// Type names the lifecycle step and doubles as the routing key.
type Type string

const (
	OrderCreated   Type = "order.created"
	OrderPaid      Type = "order.paid"
	OrderCancelled Type = "order.cancelled"
)

// Event is the JSON body of a published message.
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Type       Type               `json:"type"`
	OrderID    int64              `json:"order_id"`
	UserID     int64              `json:"user_id"`
	Status     domain.OrderStatus `json:"status"`
	Amount     decimal.Decimal    `json:"amount"`
	CourseIDs  []int64            `json:"course_ids"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// ForOrder builds an event describing o.
func ForOrder(t Type, o domain.Order, at time.Time) Event {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.CourseID)
	}
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Amount:     o.TotalAmount,
		CourseIDs:  ids,
		OccurredAt: at.UTC(),
	}
}

// TypeForStatus maps a terminal order status to its event type.
func TypeForStatus(s domain.OrderStatus) (Type, bool) {
	switch s {
	case domain.OrderPaid:
		return OrderPaid, true
	case domain.OrderCancelled:
		return OrderCancelled, true
	}
	return "", false
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// Emit publishes e and logs a failure instead of returning it.
func Emit(ctx context.Context, pub Publisher, e Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn(ctx, logger.ComponentEvents, "event.publish_failed",
			slog.String("op", string(e.Type)),
			slog.Int64("order_id", e.OrderID),
			slog.String("err", err.Error()),
		)
	}
}
