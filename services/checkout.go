package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"paylink/models"
	"paylink/processor"
)

// Checkout runs the full redemption path: gate, external charge, ledger.
// No lock is held across the charge; the ledger's unique redemption key
// decides which of several concurrent charges is recorded.
type Checkout struct {
	svc     *Service
	charger processor.Charger
}

func NewCheckout(svc *Service, charger processor.Charger) *Checkout {
	if charger == nil {
		charger = processor.Unavailable{}
	}
	return &Checkout{svc: svc, charger: charger}
}

// Redeem charges the actor for the link behind token and records the
// completed transaction. A declined charge is recorded as failed and the
// link stays active.
func (c *Checkout) Redeem(ctx context.Context, actor Actor, token, paymentMethod string) (*models.Transaction, error) {
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return nil, validationError("payment_method", "payment method is required")
	}

	auth, _, err := c.svc.AttemptRedeem(ctx, token, actor)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"link_token":       auth.Token,
		"payer_id":         strconv.FormatUint(uint64(auth.PayerID), 10),
		"payee_id":         strconv.FormatUint(uint64(auth.PayeeID), 10),
		"authorization_id": auth.ID,
	}
	ref, err := c.charger.InitiateCharge(ctx, processor.ChargeRequest{
		AuthorizationID: auth.ID,
		Amount:          auth.Amount,
		Currency:        auth.Currency,
		PaymentMethod:   paymentMethod,
		Description:     auth.ServiceName,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, c.chargeFailed(ctx, auth, err)
	}

	txn, err := c.svc.RecordTransaction(ctx, RecordInput{
		LinkToken:          &auth.Token,
		PayerID:            auth.PayerID,
		PayeeID:            auth.PayeeID,
		GrossAmount:        auth.Amount,
		Currency:           auth.Currency,
		ProcessorReference: ref,
		Message:            auth.ServiceName,
		Metadata:           map[string]interface{}{"authorization_id": auth.ID},
	})
	if err != nil {
		if RefundRequired(err) {
			// refunds are not issued here; this log line is the operator signal
			log.Printf("[checkout] charge %s captured but link %s could not be recorded (%v): refund required", ref, auth.Token, err)
		} else {
			log.Printf("[checkout] charge %s captured but recording failed: %v", ref, err)
		}
		return nil, err
	}
	return txn, nil
}

// RefundRequired reports whether err means a captured charge has no ledger
// entry: the link was redeemed, disabled or deleted while the charge ran.
func RefundRequired(err error) bool {
	return errors.Is(err, ErrAlreadyUsed) || errors.Is(err, ErrLinkDisabled) || errors.Is(err, ErrNotFound)
}

func (c *Checkout) chargeFailed(ctx context.Context, auth *RedemptionAuthorization, chargeErr error) error {
	out := &Error{Kind: KindProcessor, Code: ErrProcessor.Code, Message: ErrProcessor.Message, Err: chargeErr}
	in := RecordInput{
		LinkToken:   &auth.Token,
		PayerID:     auth.PayerID,
		PayeeID:     auth.PayeeID,
		GrossAmount: auth.Amount,
		Currency:    auth.Currency,
		Metadata:    map[string]interface{}{"authorization_id": auth.ID},
	}
	var perr *processor.Error
	if errors.As(chargeErr, &perr) {
		if perr.Message != "" {
			out.Message = perr.Message
		}
		in.ProcessorReference = perr.Reference
		in.Message = perr.Error()
		if perr.Code != "" {
			in.Metadata["decline_code"] = perr.Code
		}
	} else {
		in.Message = chargeErr.Error()
	}
	if _, err := c.svc.RecordFailure(ctx, in); err != nil {
		log.Printf("[checkout] could not record failed charge for link %s: %v", auth.Token, err)
	}
	log.Printf("[checkout] charge failed for link %s payer=%d: %v", auth.Token, auth.PayerID, chargeErr)
	return out
}
