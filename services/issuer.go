package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"paylink/models"

	"github.com/shopspring/decimal"
)

const (
	maxServiceNameLen = 191
	maxDescriptionLen = 2000
	tokenAttempts     = 3
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// decimal(15,2)
	maxAmount = decimal.New(1, 13)
)

type CreateLinkInput struct {
	ServiceName    string
	Amount         decimal.Decimal
	Description    *string
	ExpiresInHours int
	ClientEmail    string
	ClientName     *string
}

// CreateLink issues a new active payment link owned by the actor.
func (s *Service) CreateLink(ctx context.Context, actor Actor, in CreateLinkInput) (*models.PaymentLink, error) {
	if !actor.CanIssue() {
		return nil, ErrAccessDenied.withMessage("only payees can issue payment links")
	}

	name := strings.TrimSpace(in.ServiceName)
	if name == "" {
		return nil, validationError("service_name", "service name is required")
	}
	if len(name) > maxServiceNameLen {
		return nil, validationError("service_name", "service name must be at most %d characters", maxServiceNameLen)
	}
	if in.Amount.LessThan(s.opts.MinAmount) {
		return nil, validationError("amount", "amount must be at least %s", s.opts.MinAmount.StringFixed(2))
	}
	if !hasCents(in.Amount) {
		return nil, validationError("amount", "amount cannot have more than two decimal places")
	}
	if in.Amount.GreaterThanOrEqual(maxAmount) {
		return nil, validationError("amount", "amount is too large")
	}
	email := strings.ToLower(strings.TrimSpace(in.ClientEmail))
	if email == "" {
		return nil, validationError("client_email", "client email is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, validationError("client_email", "client email is not a valid address")
	}

	hours := in.ExpiresInHours
	if hours == 0 {
		hours = s.opts.DefaultExpiryHours
	}
	if hours < 1 || hours > s.opts.MaxExpiryHours {
		return nil, validationError("expires_in_hours", "expiry must be between 1 and %d hours", s.opts.MaxExpiryHours)
	}

	desc := trimmedOrNil(in.Description)
	if desc != nil && len(*desc) > maxDescriptionLen {
		return nil, validationError("description", "description must be at most %d characters", maxDescriptionLen)
	}

	now := s.Now()
	link := models.PaymentLink{
		IssuerID:    actor.ID,
		ServiceName: name,
		Amount:      in.Amount,
		Currency:    s.opts.Currency,
		Description: desc,
		ClientEmail: email,
		ClientName:  trimmedOrNil(in.ClientName),
		Status:      models.LinkStatusActive,
		ExpiresAt:   now.Add(time.Duration(hours) * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// retry on token collision
	for attempt := 1; ; attempt++ {
		token, err := NewLinkToken()
		if err != nil {
			return nil, fmt.Errorf("generate link token: %w", err)
		}
		link.ID = 0
		link.Token = token
		err = s.db.WithContext(ctx).Create(&link).Error
		if err == nil {
			return &link, nil
		}
		if !isDuplicate(err) || attempt >= tokenAttempts {
			return nil, fmt.Errorf("create payment link: %w", err)
		}
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
