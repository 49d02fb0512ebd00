// Package payment talks to the payment provider: it opens payment intents for
// orders and reads their remote status back.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/shop/domain"
)

// Gateway is the provider contract the rest of the shop depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	FetchStatus(ctx context.Context, externalID string) (RemoteStatus, error)
}

// IntentRequest describes the payment to open for one order.
type IntentRequest struct {
	OrderID     int64
	Amount      decimal.Decimal
	Description string
}

// Intent is the provider's answer: its payment id and where to send the buyer.
type Intent struct {
	ExternalID  string
	RedirectURL string
}

// RemoteStatus is the provider's view of a payment.
type RemoteStatus struct {
	ExternalID string
	Status     domain.PaymentStatus
	// Raw is the provider status string, kept for statuses we do not model
	// such as waiting_for_capture.
	Raw     string
	Amount  decimal.Decimal
	Paid    bool
	OrderID string
}

// GatewayError is any failed provider call: transport errors, non-2xx answers
// and unreadable responses. HTTPStatus is zero when no response arrived;
// Reason carries the provider's error code, e.g. invalid_request.
type GatewayError struct {
	Op         string
	HTTPStatus int
	Reason     string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := "payment gateway: " + e.Op
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(": http %d", e.HTTPStatus)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, domain.ErrGateway) match any GatewayError.
func (e *GatewayError) Is(target error) bool { return target == domain.ErrGateway }

// Code is picked up by the router handler summary as err_code.
func (e *GatewayError) Code() string { return "gateway" }
