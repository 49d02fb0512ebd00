package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing course, order, payment or user.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyCart is returned by checkout when no course ids were supplied.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoValidItems is returned by checkout when none of the ids resolve to an active course.
	ErrNoValidItems = errors.New("no valid items to order")
	// ErrGateway is matched by payment provider failures.
	ErrGateway = errors.New("payment gateway error")
	// ErrMalformedPayload reports an unparseable webhook notification.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError describes rejected input, usually from the admin flow.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Code is picked up by the router handler summary as err_code.
func (e *ValidationError) Code() string { return "validation" }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError is a rejected order status change.
type TransitionError struct {
	OrderID int64
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match any TransitionError.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Code is picked up by the router handler summary as err_code.
func (e *TransitionError) Code() string { return "invalid_transition" }
