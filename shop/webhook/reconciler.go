// Package webhook receives the payment provider's asynchronous notifications
// and reconciles them into order status transitions.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/events"
	"github.com/m3rciful/coursebot/shop/ledger"
	"github.com/m3rciful/coursebot/shop/payment"
)

// Provider event names.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// Outcome is what happened to one notification. Every outcome is acknowledged
// to the provider; only errors returned next to it are not.
type Outcome int

const (
	// Applied means the order moved to a terminal state.
	Applied Outcome = iota + 1
	// Duplicate means the order already sat in the reported state.
	Duplicate
	// UnknownPayment means no local payment has the reported id.
	UnknownPayment
	// Ignored means the event type is not handled.
	Ignored
	// Rejected means the event contradicts the order's terminal state.
	Rejected
	// Mismatch means the provider API disagrees with the notification.
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case UnknownPayment:
		return "unknown_payment"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	case Mismatch:
		return "mismatch"
	}
	return "unknown"
}

// Notification is the provider's webhook body. Only the fields we act on are decoded.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// Parse decodes body and checks it carries a payment id.
func Parse(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	n.Object.ID = strings.TrimSpace(n.Object.ID)
	if n.Object.ID == "" {
		return Notification{}, fmt.Errorf("%w: missing object.id", domain.ErrMalformedPayload)
	}
	return n, nil
}

// Settler applies terminal payment statuses; *ledger.Service implements it.
type Settler interface {
	Settle(ctx context.Context, externalID string, target domain.PaymentStatus) (ledger.Settlement, error)
}

// Notifier tells the buyer about a settled order. Implementations should not block.
type Notifier interface {
	OrderPaid(ctx context.Context, chatID int64, o domain.Order) error
	OrderCancelled(ctx context.Context, chatID int64, o domain.Order) error
}

// Recipients resolves the chat of an order's owner.
type Recipients interface {
	ChatID(ctx context.Context, userID int64) (int64, error)
}

// Reconciler maps notifications onto the ledger.
type Reconciler struct {
	settler    Settler
	recipients Recipients
	notifier   Notifier
	events     events.Publisher
	verifier   payment.Gateway
	now        func() time.Time
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithNotifier delivers buyer notifications after real transitions.
func WithNotifier(recipients Recipients, n Notifier) Option {
	return func(r *Reconciler) { r.recipients, r.notifier = recipients, n }
}

// WithPublisher emits order.paid and order.cancelled events.
func WithPublisher(p events.Publisher) Option {
	return func(r *Reconciler) { r.events = p }
}

// WithRemoteVerification asks gw for the payment status before settling, so
// a forged notification cannot mark an order paid.
func WithRemoteVerification(gw payment.Gateway) Option {
	return func(r *Reconciler) { r.verifier = gw }
}

// NewReconciler wires a reconciler over settler.
func NewReconciler(settler Settler, opts ...Option) *Reconciler {
	r := &Reconciler{settler: settler, events: events.NopPublisher{}, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one raw notification.
//
// It returns domain.ErrMalformedPayload for bodies that cannot be parsed and
// any other error for failures the provider should retry (storage, remote
// verification). Semantic no-ops such as unknown ids, duplicates and rejected
// transitions come back as an Outcome with a nil error.
func (r *Reconciler) Handle(ctx context.Context, body []byte) (Outcome, error) {
	n, err := Parse(body)
	if err != nil {
		logger.Warn(ctx, logger.ComponentWebhook, "webhook.malformed", slog.String("err", err.Error()))
		return 0, err
	}

	var target domain.PaymentStatus
	switch n.Event {
	case EventPaymentSucceeded:
		target = domain.PaymentSucceeded
	case EventPaymentCanceled:
		target = domain.PaymentCanceled
	default:
		logger.Debug(ctx, logger.ComponentWebhook, "webhook.ignored",
			slog.String("webhook_event", n.Event),
			slog.String("external_id", n.Object.ID),
		)
		return Ignored, nil
	}

	attrs := []slog.Attr{
		slog.String("webhook_event", n.Event),
		slog.String("external_id", n.Object.ID),
	}

	if r.verifier != nil {
		remote, err := r.verifier.FetchStatus(ctx, n.Object.ID)
		if err != nil {
			return 0, fmt.Errorf("webhook: verify %s: %w", n.Object.ID, err)
		}
		if remote.Status != target {
			logger.Warn(ctx, logger.ComponentWebhook, "webhook.mismatch",
				append(attrs, slog.String("remote_status", remote.Raw))...)
			return Mismatch, nil
		}
	}

	s, err := r.settler.Settle(ctx, n.Object.ID, target)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn(ctx, logger.ComponentWebhook, "webhook.unknown_payment", attrs...)
		return UnknownPayment, nil
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Error(ctx, logger.ComponentWebhook, "webhook.rejected",
			append(attrs, slog.String("err", err.Error()))...)
		return Rejected, nil
	case err != nil:
		return 0, err
	}

	attrs = append(attrs, slog.Int64("order_id", s.Order.ID), slog.String("order_status", string(s.Order.Status)))
	if s.Duplicate {
		logger.Info(ctx, logger.ComponentWebhook, "webhook.duplicate", attrs...)
		return Duplicate, nil
	}

	logger.Info(ctx, logger.ComponentWebhook, "webhook.applied", attrs...)
	r.notify(ctx, s.Order)
	if t, ok := events.TypeForStatus(s.Order.Status); ok {
		events.Emit(ctx, r.events, events.ForOrder(t, s.Order, r.now()))
	}
	return Applied, nil
}

func (r *Reconciler) notify(ctx context.Context, o domain.Order) {
	if r.notifier == nil || r.recipients == nil {
		return
	}
	chatID, err := r.recipients.ChatID(ctx, o.UserID)
	if err == nil {
		switch o.Status {
		case domain.OrderPaid:
			err = r.notifier.OrderPaid(ctx, chatID, o)
		case domain.OrderCancelled:
			err = r.notifier.OrderCancelled(ctx, chatID, o)
		}
	}
	if err != nil {
		logger.Warn(ctx, logger.ComponentWebhook, "webhook.notify_failed",
			slog.Int64("order_id", o.ID),
			slog.Int64("user_id", o.UserID),
			slog.String("err", err.Error()),
		)
	}
}
