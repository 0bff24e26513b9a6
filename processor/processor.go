// Package processor holds the narrow contract the payment core consumes from
// an external card processor, plus the Stripe implementation of it.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ChargeRequest is everything the processor needs to move money for one
// redemption. AuthorizationID doubles as the idempotency key.
type ChargeRequest struct {
	AuthorizationID string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethod   string
	Description     string
	Metadata        map[string]string
}

// Charger executes a charge and returns the processor reference on success.
type Charger interface {
	InitiateCharge(ctx context.Context, req ChargeRequest) (string, error)
}

// Error is a declined or failed charge. Reference is set when the processor
// created an object before failing.
type Error struct {
	Code      string
	Message   string
	Reference string
	Err       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor: %s: %s", e.Code, e.Message)
	}
	return "processor: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnavailable is returned when no processor is configured.
var ErrUnavailable = errors.New("payment processor not configured")

// Unavailable is the Charger used when STRIPE_SECRET_KEY is empty.
type Unavailable struct{}

func (Unavailable) InitiateCharge(context.Context, ChargeRequest) (string, error) {
	return "", &Error{Code: "unavailable", Message: ErrUnavailable.Error(), Err: ErrUnavailable}
}

// ToMinorUnits converts a two-decimal amount into cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
