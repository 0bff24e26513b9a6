// Package services implements the payment-link core: issuing links, the
// redemption gate, the append-only ledger, link status upkeep and payee
// acknowledgments. Every operation takes the calling Actor explicitly.
package services

import (
	"context"
	"log"
	"time"

	"paylink/models"

	"gorm.io/gorm"
)

// LedgerObserver is told about every committed ledger entry. Observer errors
// are logged and never undo the entry.
type LedgerObserver interface {
	TransactionRecorded(ctx context.Context, txn *models.Transaction) error
}

type Service struct {
	db        *gorm.DB
	opts      Options
	observers []LedgerObserver
}

func New(db *gorm.DB, opts Options, observers ...LedgerObserver) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, opts: opts, observers: observers}
}

func (s *Service) Options() Options { return s.opts }

// Now is the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.opts.Now().UTC()
}

// SecureURL is the payer-facing URL for a link token.
func (s *Service) SecureURL(token string) string {
	return s.opts.PublicBaseURL + "/pay/" + token
}

func (s *Service) notify(ctx context.Context, txn *models.Transaction) {
	for _, o := range s.observers {
		if err := o.TransactionRecorded(ctx, txn); err != nil {
			log.Printf("[ledger] observer failed for transaction %d: %v", txn.ID, err)
		}
	}
}
