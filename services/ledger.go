package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"paylink/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordInput describes a confirmed charge. FeeRate nil means the configured rate.
type RecordInput struct {
	LinkToken          *string
	PayerID            uint
	PayeeID            uint
	GrossAmount        decimal.Decimal
	FeeRate            *decimal.Decimal
	Currency           string
	ProcessorReference string
	Message            string
	Metadata           map[string]interface{}
}

// RecordTransaction appends a completed, fee-split ledger entry. When the
// entry belongs to a link, the link is locked, the entry takes the link's
// redemption key and the link is marked redeemed in the same store
// transaction. A second completed entry for the same link fails the unique
// redemption key and surfaces as ErrAlreadyUsed. Replaying a processor
// reference returns the entry recorded the first time.
func (s *Service) RecordTransaction(ctx context.Context, in RecordInput) (*models.Transaction, error) {
	ref := strings.TrimSpace(in.ProcessorReference)
	if ref == "" {
		return nil, validationError("processor_reference", "processor reference is required")
	}
	txn, err := s.buildTransaction(in, models.TransactionCompleted)
	if err != nil {
		return nil, err
	}
	txn.ProcessorReference = &ref

	var replay *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByReference(tx, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			if !sameCharge(existing, in) {
				return replayMismatch(ref)
			}
			replay = existing
			return nil
		}

		if in.LinkToken != nil {
			token := *in.LinkToken
			var link models.PaymentLink
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("token = ?", token).First(&link).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound.withMessage("payment link not found")
				}
				return err
			}
			if link.Status == models.LinkStatusDisabled {
				return ErrLinkDisabled
			}
			if link.IssuerID != txn.PayeeID {
				return validationError("payee_id", "payee does not own this payment link")
			}
			if !link.Amount.Equal(txn.GrossAmount) {
				return validationError("gross_amount", "amount %s does not match link amount %s",
					txn.GrossAmount.StringFixed(2), link.Amount.StringFixed(2))
			}
			txn.LinkToken = &token
			txn.RedemptionKey = &token
		}

		if err := tx.Create(txn).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadyUsed
			}
			return err
		}
		if txn.LinkToken != nil {
			return markRedeemed(tx, *txn.LinkToken, s.Now())
		}
		return nil
	})

	if errors.Is(err, ErrAlreadyUsed) {
		// a concurrent delivery of the same processor reference may have won
		if existing, ferr := findByReference(s.db.WithContext(ctx), ref); ferr == nil && existing != nil {
			if !sameCharge(existing, in) {
				return nil, replayMismatch(ref)
			}
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, wrapStore("record transaction", err)
	}
	if replay != nil {
		log.Printf("[ledger] processor reference %s already recorded as transaction %d", ref, replay.ID)
		return replay, nil
	}

	log.Printf("[ledger] recorded transaction %d gross=%s fee=%s payee=%d",
		txn.ID, txn.GrossAmount.StringFixed(2), txn.PlatformFee.StringFixed(2), txn.PayeeID)
	s.notify(ctx, txn)
	return txn, nil
}

// RecordFailure appends a failed entry for a declined charge. Failed entries
// never hold a redemption key, so the link stays redeemable. A decline already
// recorded under the same processor reference is returned as is.
func (s *Service) RecordFailure(ctx context.Context, in RecordInput) (*models.Transaction, error) {
	txn, err := s.buildTransaction(in, models.TransactionFailed)
	if err != nil {
		return nil, err
	}
	txn.LinkToken = in.LinkToken
	db := s.db.WithContext(ctx)
	if ref := strings.TrimSpace(in.ProcessorReference); ref != "" {
		existing, err := findFailure(db, ref)
		if err != nil {
			return nil, fmt.Errorf("lookup failed transaction: %w", err)
		}
		if existing != nil {
			if !sameCharge(existing, in) {
				return nil, replayMismatch(ref)
			}
			return existing, nil
		}
		if txn.Metadata == nil {
			txn.Metadata = map[string]interface{}{}
		}
		txn.Metadata["processor_reference"] = ref
	}
	if err := db.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("record failed transaction: %w", err)
	}
	log.Printf("[ledger] recorded failed attempt %d for payee=%d", txn.ID, txn.PayeeID)
	s.notify(ctx, txn)
	return txn, nil
}

func (s *Service) buildTransaction(in RecordInput, status string) (*models.Transaction, error) {
	if in.PayerID == 0 {
		return nil, validationError("payer_id", "payer is required")
	}
	if in.PayeeID == 0 {
		return nil, validationError("payee_id", "payee is required")
	}
	if !in.GrossAmount.IsPositive() {
		return nil, validationError("gross_amount", "amount must be positive")
	}
	if !hasCents(in.GrossAmount) {
		return nil, validationError("gross_amount", "amount cannot have more than two decimal places")
	}
	rate := s.opts.FeeRate
	if in.FeeRate != nil {
		rate = *in.FeeRate
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, validationError("fee_rate", "fee rate must be within [0, 1)")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.opts.Currency
	}

	fee, earnings := SplitFee(in.GrossAmount, rate)
	txn := &models.Transaction{
		PayerID:       in.PayerID,
		PayeeID:       in.PayeeID,
		GrossAmount:   in.GrossAmount,
		PlatformFee:   fee,
		PayeeEarnings: earnings,
		FeeRate:       rate,
		Currency:      currency,
		Status:        status,
		CreatedAt:     s.Now(),
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		txn.Message = &msg
	}
	if len(in.Metadata) > 0 {
		txn.Metadata = in.Metadata
	}
	return txn, nil
}

// sameCharge reports whether a stored entry describes the charge in. A
// processor reference never moves between links, payers or amounts.
func sameCharge(existing *models.Transaction, in RecordInput) bool {
	if (existing.LinkToken == nil) != (in.LinkToken == nil) {
		return false
	}
	if existing.LinkToken != nil && *existing.LinkToken != *in.LinkToken {
		return false
	}
	return existing.PayerID == in.PayerID &&
		existing.PayeeID == in.PayeeID &&
		existing.GrossAmount.Equal(in.GrossAmount)
}

func replayMismatch(ref string) error {
	return validationError("processor_reference", "processor reference %s is already recorded for a different charge", ref)
}

func findByReference(db *gorm.DB, ref string) (*models.Transaction, error) {
	var existing models.Transaction
	err := db.Where("processor_reference = ?", ref).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// failed rows keep their processor reference in metadata, outside the unique column
func findFailure(db *gorm.DB, ref string) (*models.Transaction, error) {
	var existing models.Transaction
	err := db.Where("status = ?", models.TransactionFailed).
		Where(datatypes.JSONQuery("metadata").Equals(ref, "processor_reference")).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}
