package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"paylink/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarkRedeemed moves a link to redeemed. Safe to call repeatedly: a link that
// is already redeemed is left as is.
func (s *Service) MarkRedeemed(ctx context.Context, token string) error {
	return markRedeemed(s.db.WithContext(ctx), token, s.Now())
}

func markRedeemed(db *gorm.DB, token string, now time.Time) error {
	res := db.Model(&models.PaymentLink{}).
		Where("token = ? AND status IN ?", token, []string{models.LinkStatusActive, models.LinkStatusExpired}).
		Updates(map[string]interface{}{"status": models.LinkStatusRedeemed, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("mark link redeemed: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var link models.PaymentLink
	if err := db.Where("token = ?", token).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound.withMessage("payment link not found")
		}
		return fmt.Errorf("load payment link: %w", err)
	}
	switch link.Status {
	case models.LinkStatusRedeemed:
		return nil
	case models.LinkStatusDisabled:
		return ErrLinkDisabled
	}
	return ErrLinkNotActive
}

// SweepExpired flips active links whose expiry has passed to expired. It is
// for reporting only; the redemption gate never relies on it.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("status = ? AND expires_at < ?", models.LinkStatusActive, now).
		Updates(map[string]interface{}{"status": models.LinkStatusExpired, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep expired links: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[links/sweep] marked %d links expired", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// Disable soft-disables an active link that has no completed transaction.
func (s *Service) Disable(ctx context.Context, actor Actor, linkID uint) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwnedLink(tx, actor, linkID, &link); err != nil {
			return err
		}
		paid, err := hasCompletedTransaction(tx, link.Token)
		if err != nil {
			return err
		}
		if paid {
			return ErrLinkHasPayment
		}
		if link.Status != models.LinkStatusActive {
			return ErrLinkNotActive.withMessage("only active links can be disabled (status is %s)", link.Status)
		}
		now := s.Now()
		if err := tx.Model(&link).Updates(map[string]interface{}{"status": models.LinkStatusDisabled, "updated_at": now}).Error; err != nil {
			return err
		}
		link.Status = models.LinkStatusDisabled
		link.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapStore("disable link", err)
	}
	log.Printf("[links/disable] link %d disabled by user %d", link.ID, actor.ID)
	return &link, nil
}

// Delete removes a link that has never been paid. Ledger entries must
// outlive their link, so a paid link is kept.
func (s *Service) Delete(ctx context.Context, actor Actor, linkID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.PaymentLink
		if err := lockOwnedLink(tx, actor, linkID, &link); err != nil {
			return err
		}
		paid, err := hasCompletedTransaction(tx, link.Token)
		if err != nil {
			return err
		}
		if paid {
			return ErrLinkHasPayment
		}
		return tx.Delete(&link).Error
	})
	if err != nil {
		return wrapStore("delete link", err)
	}
	log.Printf("[links/delete] link %d deleted by user %d", linkID, actor.ID)
	return nil
}

func lockOwnedLink(tx *gorm.DB, actor Actor, linkID uint, link *models.PaymentLink) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(link, linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound.withMessage("payment link not found")
		}
		return err
	}
	if !actor.owns(link.IssuerID) {
		return ErrAccessDenied
	}
	return nil
}

// wrapStore passes core errors through and annotates store errors.
func wrapStore(op string, err error) error {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
