// Package ledger turns carts into durable orders and owns the order and
// payment status transitions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
)

// Store is the transactional storage behind the ledger.
type Store interface {
	// InTx runs fn in one transaction, committing only when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// Order returns an order with its items.
	Order(ctx context.Context, id int64) (domain.Order, error)
	// OrdersByUser returns the user's orders with items, newest first.
	OrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

// Tx is the set of statements a ledger transaction may issue. Lookups return
// domain.ErrNotFound for missing rows. ForUpdate variants lock the row until
// the transaction ends.
type Tx interface {
	ActiveCourses(ctx context.Context, ids []int64) ([]domain.Course, error)
	InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	InsertItem(ctx context.Context, it domain.OrderItem) (domain.OrderItem, error)
	OrderForUpdate(ctx context.Context, id int64) (domain.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	InsertPayment(ctx context.Context, p domain.Payment) (domain.Payment, error)
	PaymentByOrder(ctx context.Context, orderID int64) (domain.Payment, error)
	PaymentForUpdate(ctx context.Context, externalID string) (domain.Payment, error)
	UpdatePayment(ctx context.Context, p domain.Payment) error
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error
}

// Settlement is the result of applying a terminal payment event.
type Settlement struct {
	Order   domain.Order
	Payment domain.Payment
	// Duplicate is set when the order already sat in the target state;
	// nothing was written.
	Duplicate bool
}

// Service implements the ledger operations.
type Service struct {
	store Store
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a ledger over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout creates a pending order for the active subset of courseIDs.
// Unknown and inactive ids are dropped, repeated ids count once. The order and
// all of its items are written in a single transaction.
func (s *Service) Checkout(ctx context.Context, userID int64, courseIDs []int64) (domain.Order, error) {
	if len(courseIDs) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	ids := uniqueIDs(courseIDs)

	var order domain.Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		courses, err := tx.ActiveCourses(ctx, ids)
		if err != nil {
			return fmt.Errorf("resolve courses: %w", err)
		}
		byID := make(map[int64]domain.Course, len(courses))
		for _, c := range courses {
			byID[c.ID] = c
		}

		items := make([]domain.OrderItem, 0, len(ids))
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				continue
			}
			items = append(items, domain.OrderItem{
				CourseID:    c.ID,
				Price:       c.Price,
				CourseTitle: c.Title,
				MaterialURL: c.MaterialURL,
			})
		}
		if len(items) == 0 {
			return domain.ErrNoValidItems
		}

		order, err = tx.InsertOrder(ctx, domain.Order{
			UserID:      userID,
			Status:      domain.OrderPending,
			TotalAmount: domain.SumItems(items),
			CreatedAt:   s.now(),
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
			saved, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			saved.CourseTitle, saved.MaterialURL = items[i].CourseTitle, items[i].MaterialURL
			items[i] = saved
		}
		order.Items = items
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoValidItems) {
			logger.Info(ctx, logger.ComponentLedger, "checkout.rejected",
				slog.Int64("user_id", userID),
				slog.Int("items", len(ids)),
				slog.String("err_code", "no_valid_items"),
			)
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("ledger: checkout: %w", err)
	}

	logger.Info(ctx, logger.ComponentLedger, "order.created",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", userID),
		slog.Int("items", len(order.Items)),
		slog.String("amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// AttachPayment records the gateway payment for a pending order. Attaching the
// same external id twice returns the stored payment.
func (s *Service) AttachPayment(ctx context.Context, orderID int64, externalID string, amount decimal.Decimal) (domain.Payment, error) {
	if externalID == "" {
		return domain.Payment{}, domain.Invalid("external_id", "must not be empty")
	}

	var payment domain.Payment
	err := s.store.InTx(ctx, func(tx Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		existing, err := tx.PaymentByOrder(ctx, orderID)
		switch {
		case err == nil && existing.ExternalID == externalID:
			payment = existing
			return nil
		case err == nil:
			return domain.Invalid("order", "already has a payment")
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		if order.Status != domain.OrderPending {
			return domain.Invalid("order", "is not pending")
		}
		if !amount.Equal(order.TotalAmount) {
			return domain.Invalid("amount", "must equal the order total")
		}
		payment, err = tx.InsertPayment(ctx, domain.Payment{
			OrderID:    orderID,
			ExternalID: externalID,
			Amount:     order.TotalAmount,
			Status:     domain.PaymentPending,
			CreatedAt:  s.now(),
		})
		return err
	})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("ledger: attach payment to order %d: %w", orderID, err)
	}

	logger.Info(ctx, logger.ComponentLedger, "payment.attached",
		slog.Int64("order_id", orderID),
		slog.Int64("payment_id", payment.ID),
		slog.String("external_id", externalID),
	)
	return payment, nil
}

// Settle applies a terminal payment status reported for externalID and moves
// the owning order accordingly, both in one transaction.
//
// A repeated event for the state the order is already in yields
// Settlement.Duplicate without writes. An event that contradicts a terminal
// state fails with *domain.TransitionError. Unknown ids fail with
// domain.ErrNotFound.
func (s *Service) Settle(ctx context.Context, externalID string, target domain.PaymentStatus) (Settlement, error) {
	orderTarget, ok := target.OrderStatus()
	if !ok {
		return Settlement{}, domain.Invalid("status", fmt.Sprintf("%q is not terminal", target))
	}

	var out Settlement
	err := s.store.InTx(ctx, func(tx Tx) error {
		payment, err := tx.PaymentForUpdate(ctx, externalID)
		if err != nil {
			return err
		}
		order, err := tx.OrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}

		applied, err := order.Transition(orderTarget)
		if err != nil {
			return err
		}
		if applied {
			payment.Status = target
			if target == domain.PaymentSucceeded {
				at := s.now()
				payment.PaidAt = &at
			}
			if err := tx.UpdatePayment(ctx, payment); err != nil {
				return fmt.Errorf("update payment: %w", err)
			}
			if err := tx.UpdateOrderStatus(ctx, order.ID, orderTarget); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			order.Status = orderTarget
		}

		items, err := tx.OrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}
		order.Items = items
		out = Settlement{Order: order, Payment: payment, Duplicate: !applied}
		return nil
	})
	if err != nil {
		return Settlement{}, fmt.Errorf("ledger: settle %s: %w", externalID, err)
	}

	logger.Info(ctx, logger.ComponentLedger, "order.settled",
		slog.Int64("order_id", out.Order.ID),
		slog.String("order_status", string(out.Order.Status)),
		slog.String("external_id", externalID),
		slog.Bool("duplicate", out.Duplicate),
	)
	return out, nil
}

// Order returns an order with items.
func (s *Service) Order(ctx context.Context, id int64) (domain.Order, error) {
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("ledger: order %d: %w", id, err)
	}
	return o, nil
}

// OrdersByUser returns the user's orders, newest first.
func (s *Service) OrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: orders of user %d: %w", userID, err)
	}
	return orders, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
