package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripe charges through confirmed PaymentIntents. The processor reference is
// the PaymentIntent id.
type Stripe struct {
	api *client.API
}

// NewStripe builds the adapter. backends may be nil to use Stripe's defaults.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(secretKey, backends)}
}

func (s *Stripe) InitiateCharge(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(ToMinorUnits(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.AuthorizationID != "" {
		params.SetIdempotencyKey(req.AuthorizationID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			perr := &Error{Code: string(serr.Code), Message: serr.Msg, Err: err}
			if serr.DeclineCode != "" {
				perr.Code = string(serr.DeclineCode)
			}
			if serr.PaymentIntent != nil {
				perr.Reference = serr.PaymentIntent.ID
			}
			return "", perr
		}
		return "", &Error{Message: "charge request failed", Err: err}
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", &Error{
			Code:      string(pi.Status),
			Message:   fmt.Sprintf("payment not completed (status %s)", pi.Status),
			Reference: pi.ID,
		}
	}
	return pi.ID, nil
}

const (
	CallbackSucceeded = "payment_intent.succeeded"
	CallbackFailed    = "payment_intent.payment_failed"
)

// Callback is a verified processor notification about one charge.
type Callback struct {
	EventID        string
	Type           string
	Reference      string
	Amount         decimal.Decimal
	Currency       string
	Metadata       map[string]string
	FailureCode    string
	FailureMessage string
}

// ParseStripeCallback verifies the Stripe-Signature header and decodes
// PaymentIntent events. Other event types return a Callback with only
// EventID and Type set.
func ParseStripeCallback(payload []byte, signature, secret string) (*Callback, error) {
	if secret == "" {
		return nil, errors.New("webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	cb := &Callback{EventID: event.ID, Type: string(event.Type)}
	if cb.Type != CallbackSucceeded && cb.Type != CallbackFailed {
		return cb, nil
	}
	if event.Data == nil {
		return nil, errors.New("webhook event has no data")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	cb.Reference = pi.ID
	cb.Amount = FromMinorUnits(pi.Amount)
	cb.Currency = string(pi.Currency)
	cb.Metadata = pi.Metadata
	if pi.LastPaymentError != nil {
		cb.FailureCode = string(pi.LastPaymentError.Code)
		cb.FailureMessage = pi.LastPaymentError.Msg
	}
	return cb, nil
}
