package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paylink/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RedemptionAuthorization is a one-time permission to charge the payer for a
// link. Holding one does not mark the link redeemed; only a recorded
// completed transaction does.
type RedemptionAuthorization struct {
	ID          string
	LinkID      uint
	Token       string
	PayerID     uint
	PayeeID     uint
	Amount      decimal.Decimal
	Currency    string
	ServiceName string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}

// AttemptRedeem validates a presented token for the actor. Checks run in a
// fixed order: existence, live expiry, prior use, then identity.
func (s *Service) AttemptRedeem(ctx context.Context, token string, actor Actor) (*RedemptionAuthorization, *models.PaymentLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrNotFound.withMessage("payment link not found")
	}
	db := s.db.WithContext(ctx)

	var link models.PaymentLink
	if err := db.Where("token = ?", token).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound.withMessage("payment link not found")
		}
		return nil, nil, fmt.Errorf("load payment link: %w", err)
	}

	now := s.Now()
	// stored status may lag behind the clock
	if link.IsExpiredAt(now) {
		return nil, &link, ErrExpired
	}

	paid, err := hasCompletedTransaction(db, token)
	if err != nil {
		return nil, &link, err
	}
	if paid || link.Status == models.LinkStatusRedeemed {
		return nil, &link, ErrAlreadyUsed
	}
	if link.Status == models.LinkStatusDisabled {
		return nil, &link, ErrLinkDisabled
	}

	if actor.ID == 0 {
		return nil, &link, ErrAccessDenied
	}
	if actor.ID == link.IssuerID {
		return nil, &link, ErrAccessDenied.withMessage("you cannot pay your own payment link")
	}
	if s.opts.EnforceClientEmail && !strings.EqualFold(strings.TrimSpace(actor.Email), link.ClientEmail) {
		return nil, &link, ErrAccessDenied.withMessage("this payment link is reserved for another client")
	}

	return &RedemptionAuthorization{
		ID:          uuid.NewString(),
		LinkID:      link.ID,
		Token:       link.Token,
		PayerID:     actor.ID,
		PayeeID:     link.IssuerID,
		Amount:      link.Amount,
		Currency:    link.Currency,
		ServiceName: link.ServiceName,
		ExpiresAt:   link.ExpiresAt,
		IssuedAt:    now,
	}, &link, nil
}

func hasCompletedTransaction(db *gorm.DB, token string) (bool, error) {
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("link_token = ? AND status = ?", token, models.TransactionCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check link transactions: %w", err)
	}
	return count > 0, nil
}
