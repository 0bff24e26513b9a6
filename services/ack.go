package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"paylink/models"

	"gorm.io/gorm"
)

// Acknowledge marks a completed transaction as reviewed by its payee. The
// flag flips at most once; acknowledged_at is never rewritten.
func (s *Service) Acknowledge(ctx context.Context, actor Actor, transactionID uint) (*models.Transaction, error) {
	db := s.db.WithContext(ctx)

	var txn models.Transaction
	if err := db.First(&txn, transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound.withMessage("transaction not found")
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if actor.ID == 0 || txn.PayeeID != actor.ID {
		return nil, ErrAccessDenied
	}
	if txn.Status != models.TransactionCompleted {
		return nil, ErrNotCompleted
	}
	if txn.Acknowledged {
		return nil, ErrAlreadyAcknowledged
	}

	now := s.Now()
	res := db.Model(&models.Transaction{}).
		Where("id = ? AND acknowledged = ?", txn.ID, false).
		Updates(map[string]interface{}{"acknowledged": true, "acknowledged_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("acknowledge transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyAcknowledged
	}

	txn.Acknowledged = true
	txn.AcknowledgedAt = &now
	log.Printf("[transactions/ack] transaction %d acknowledged by payee %d", txn.ID, actor.ID)
	return &txn, nil
}

// ListUnacknowledged returns the payee's completed, unacknowledged
// transactions, newest first.
func (s *Service) ListUnacknowledged(ctx context.Context, actor Actor) ([]models.Transaction, error) {
	if actor.ID == 0 {
		return nil, ErrAccessDenied
	}
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("payee_id = ? AND status = ? AND acknowledged = ?", actor.ID, models.TransactionCompleted, false).
		Order("created_at DESC").Order("id DESC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list unacknowledged transactions: %w", err)
	}
	return txns, nil
}
