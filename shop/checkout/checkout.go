// Package checkout turns a user's cart into a payable order.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/events"
	"github.com/m3rciful/coursebot/shop/payment"
)

// Users resolves the buyer.
type Users interface {
	GetOrCreate(ctx context.Context, telegramID int64, fullName, username string) (domain.User, error)
}

// Cart is the part of the cart service checkout needs.
type Cart interface {
	List(ctx context.Context, userID int64) ([]int64, error)
	Clear(ctx context.Context, userID int64) error
}

// Ledger is the part of the order ledger checkout needs.
type Ledger interface {
	Checkout(ctx context.Context, userID int64, courseIDs []int64) (domain.Order, error)
	AttachPayment(ctx context.Context, orderID int64, externalID string, amount decimal.Decimal) (domain.Payment, error)
}

// Customer identifies who is checking out. Carts are keyed by TelegramID.
type Customer struct {
	TelegramID int64
	FullName   string
	Username   string
}

// Placement is a created order and the page where it can be paid.
type Placement struct {
	Order       domain.Order
	Payment     domain.Payment
	RedirectURL string
}

// Orchestrator runs the checkout pipeline.
type Orchestrator struct {
	users   Users
	cart    Cart
	ledger  Ledger
	gateway payment.Gateway
	events  events.Publisher
	now     func() time.Time
}

// New wires an orchestrator. A nil publisher disables lifecycle events.
func New(users Users, cart Cart, ledger Ledger, gateway payment.Gateway, pub events.Publisher) *Orchestrator {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Orchestrator{
		users:   users,
		cart:    cart,
		ledger:  ledger,
		gateway: gateway,
		events:  pub,
		now:     time.Now,
	}
}

// PlaceOrder creates a pending order from the customer's cart, opens a payment
// for it and empties the cart.
//
// When the gateway fails the order stays pending and the cart is kept, so the
// customer can simply try again; the error matches domain.ErrGateway.
func (o *Orchestrator) PlaceOrder(ctx context.Context, c Customer) (Placement, error) {
	user, err := o.users.GetOrCreate(ctx, c.TelegramID, c.FullName, c.Username)
	if err != nil {
		return Placement{}, err
	}
	ids, err := o.cart.List(ctx, c.TelegramID)
	if err != nil {
		return Placement{}, err
	}

	order, err := o.ledger.Checkout(ctx, user.ID, ids)
	if err != nil {
		return Placement{}, err
	}

	intent, err := o.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:     order.ID,
		Amount:      order.TotalAmount,
		Description: Describe(order.Items),
	})
	if err != nil {
		logger.Error(ctx, logger.ComponentCheckout, "checkout.gateway_fail",
			slog.Int64("order_id", order.ID),
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
		return Placement{Order: order}, fmt.Errorf("checkout: order %d: %w", order.ID, err)
	}

	pay, err := o.ledger.AttachPayment(ctx, order.ID, intent.ExternalID, order.TotalAmount)
	if err != nil {
		// The provider holds a payment we could not record; its webhook will
		// be acknowledged as unknown.
		logger.Error(ctx, logger.ComponentCheckout, "checkout.attach_fail",
			slog.Int64("order_id", order.ID),
			slog.String("external_id", intent.ExternalID),
			slog.String("err", err.Error()),
		)
		return Placement{Order: order}, err
	}

	if err := o.cart.Clear(ctx, c.TelegramID); err != nil {
		logger.Warn(ctx, logger.ComponentCheckout, "checkout.cart_clear_fail",
			slog.Int64("order_id", order.ID),
			slog.String("err", err.Error()),
		)
	}
	events.Emit(ctx, o.events, events.ForOrder(events.OrderCreated, order, o.now()))

	logger.Info(ctx, logger.ComponentCheckout, "checkout.done",
		slog.Int64("order_id", order.ID),
		slog.String("external_id", pay.ExternalID),
		slog.String("amount", order.TotalAmount.StringFixed(2)),
	)
	return Placement{Order: order, Payment: pay, RedirectURL: intent.RedirectURL}, nil
}

// Describe builds the payment description shown by the provider.
func Describe(items []domain.OrderItem) string {
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.CourseTitle)
	}
	return payment.Description("Courses: " + strings.Join(titles, ", "))
}
