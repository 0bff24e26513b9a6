package services

import (
	"strings"
	"time"

	"paylink/config"

	"github.com/shopspring/decimal"
)

// Options are the configured constants of the payment core.
type Options struct {
	FeeRate            decimal.Decimal
	MinAmount          decimal.Decimal
	Currency           string
	DefaultExpiryHours int
	MaxExpiryHours     int
	PublicBaseURL      string
	EnforceClientEmail bool
	Now                func() time.Time
}

func DefaultOptions() Options {
	return Options{
		FeeRate:            decimal.RequireFromString("0.05"),
		MinAmount:          decimal.RequireFromString("1.00"),
		Currency:           "usd",
		DefaultExpiryHours: 24,
		MaxExpiryHours:     720,
		PublicBaseURL:      "http://localhost:8080",
		EnforceClientEmail: true,
		Now:                time.Now,
	}
}

// OptionsFromConfig converts validated payment settings into Options.
func OptionsFromConfig(p config.PaymentsConfig) (Options, error) {
	opts := DefaultOptions()
	fee, err := p.Fee()
	if err != nil {
		return opts, err
	}
	min, err := p.Minimum()
	if err != nil {
		return opts, err
	}
	opts.FeeRate = fee
	opts.MinAmount = min
	opts.Currency = strings.ToLower(p.Currency)
	opts.DefaultExpiryHours = p.DefaultExpiryHours
	opts.MaxExpiryHours = p.MaxExpiryHours
	opts.PublicBaseURL = strings.TrimRight(p.PublicBaseURL, "/")
	opts.EnforceClientEmail = p.EnforceClientEmail
	return opts, nil
}
