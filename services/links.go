package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paylink/models"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LinkView is a link with its read-time projections. Neither flag is stored.
type LinkView struct {
	models.PaymentLink
	IsPaid    bool
	IsExpired bool
}

type Page struct {
	Page  int
	Limit int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// ListLinks pages through the actor's links, newest first. Admins see every
// link. Status "active" and "expired" are evaluated against the clock.
func (s *Service) ListLinks(ctx context.Context, actor Actor, status string, page Page) ([]LinkView, int64, error) {
	if !actor.CanIssue() {
		return nil, 0, ErrAccessDenied
	}
	page = page.Normalize()
	now := s.Now()

	q := s.db.WithContext(ctx).Model(&models.PaymentLink{})
	if !actor.IsAdmin() {
		q = q.Where("issuer_id = ?", actor.ID)
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "all":
	case models.LinkStatusActive:
		q = q.Where("status = ? AND expires_at >= ?", models.LinkStatusActive, now)
	case models.LinkStatusExpired:
		q = q.Where("status = ? OR (status = ? AND expires_at < ?)", models.LinkStatusExpired, models.LinkStatusActive, now)
	case models.LinkStatusRedeemed:
		q = q.Where("status = ?", models.LinkStatusRedeemed)
	case models.LinkStatusDisabled:
		q = q.Where("status = ?", models.LinkStatusDisabled)
	default:
		return nil, 0, validationError("status", "unknown status filter %q", status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payment links: %w", err)
	}
	var links []models.PaymentLink
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.offset()).Find(&links).Error; err != nil {
		return nil, 0, fmt.Errorf("list payment links: %w", err)
	}

	paid, err := s.paidTokens(ctx, links)
	if err != nil {
		return nil, 0, err
	}
	views := make([]LinkView, 0, len(links))
	for _, l := range links {
		views = append(views, LinkView{PaymentLink: l, IsPaid: paid[l.Token], IsExpired: l.IsExpiredAt(now)})
	}
	return views, total, nil
}

// GetLink returns one link to its issuer or an admin.
func (s *Service) GetLink(ctx context.Context, actor Actor, id uint) (*LinkView, error) {
	var link models.PaymentLink
	if err := s.db.WithContext(ctx).First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound.withMessage("payment link not found")
		}
		return nil, fmt.Errorf("load payment link: %w", err)
	}
	if !actor.owns(link.IssuerID) {
		return nil, ErrAccessDenied
	}
	paid, err := s.paidTokens(ctx, []models.PaymentLink{link})
	if err != nil {
		return nil, err
	}
	return &LinkView{PaymentLink: link, IsPaid: paid[link.Token], IsExpired: link.IsExpiredAt(s.Now())}, nil
}

func (s *Service) paidTokens(ctx context.Context, links []models.PaymentLink) (map[string]bool, error) {
	paid := make(map[string]bool, len(links))
	if len(links) == 0 {
		return paid, nil
	}
	tokens := make([]string, 0, len(links))
	for _, l := range links {
		tokens = append(tokens, l.Token)
	}
	var found []string
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("link_token IN ? AND status = ?", tokens, models.TransactionCompleted).
		Distinct().Pluck("link_token", &found).Error
	if err != nil {
		return nil, fmt.Errorf("load paid links: %w", err)
	}
	for _, t := range found {
		paid[t] = true
	}
	return paid, nil
}

// ListTransactions pages through transactions where the actor is payee or
// payer, newest first. Admins see the whole ledger.
func (s *Service) ListTransactions(ctx context.Context, actor Actor, page Page) ([]models.Transaction, int64, error) {
	if actor.ID == 0 {
		return nil, 0, ErrAccessDenied
	}
	page = page.Normalize()
	q := s.db.WithContext(ctx).Model(&models.Transaction{})
	if !actor.IsAdmin() {
		q = q.Where("payee_id = ? OR payer_id = ?", actor.ID, actor.ID)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	var txns []models.Transaction
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.offset()).Find(&txns).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txns, total, nil
}
