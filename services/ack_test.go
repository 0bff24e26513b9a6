package services

import (
	"context"
	"testing"
	"time"

	"paylink/models"

	"github.com/shopspring/decimal"
)

func TestAcknowledge(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()
	link := mustCreateLink(t, s, "50.00", 24)
	txn := mustRecord(t, s, link, "pi_1")

	_, err := s.Acknowledge(ctx, stranger, txn.ID)
	assertCode(t, err, ErrAccessDenied)
	_, err = s.Acknowledge(ctx, admin, txn.ID)
	assertCode(t, err, ErrAccessDenied)
	_, err = s.Acknowledge(ctx, payee, 9999)
	assertCode(t, err, ErrNotFound)

	acked, err := s.Acknowledge(ctx, payee, txn.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedAt == nil {
		t.Fatalf("expected acknowledged transaction, got %+v", acked)
	}
	first := *acked.AcknowledgedAt

	clock.Advance(time.Hour)
	_, err = s.Acknowledge(ctx, payee, txn.ID)
	assertCode(t, err, ErrAlreadyAcknowledged)

	var stored models.Transaction
	if err := s.db.First(&stored, txn.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.Acknowledged || stored.AcknowledgedAt == nil || !stored.AcknowledgedAt.Equal(first) {
		t.Fatalf("acknowledged_at changed: stored=%v first=%s", stored.AcknowledgedAt, first)
	}
}

func TestAcknowledge_FailedTransaction(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	link := mustCreateLink(t, s, "50.00", 24)
	failed, err := s.RecordFailure(ctx, RecordInput{
		LinkToken: &link.Token, PayerID: payer.ID, PayeeID: payee.ID, GrossAmount: link.Amount,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Acknowledge(ctx, payee, failed.ID)
	assertCode(t, err, ErrNotCompleted)
}

func TestListUnacknowledged_NewestFirst(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	var ids []uint
	for i, amount := range []string{"10.00", "20.00", "30.00"} {
		link := mustCreateLink(t, s, amount, 24)
		txn := mustRecord(t, s, link, "pi_"+amount)
		ids = append(ids, txn.ID)
		if i < 2 {
			clock.Advance(time.Minute)
		}
	}
	// another payee's entry must not show up
	if _, err := s.RecordTransaction(ctx, RecordInput{
		PayerID: payer.ID, PayeeID: 500, GrossAmount: decimal.RequireFromString("5.00"), ProcessorReference: "pi_other",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Acknowledge(ctx, payee, ids[1]); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListUnacknowledged(ctx, payee)
	if err != nil {
		t.Fatalf("ListUnacknowledged: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[0] {
		got := make([]uint, 0, len(list))
		for _, tx := range list {
			got = append(got, tx.ID)
		}
		t.Fatalf("expected [%d %d], got %v", ids[2], ids[0], got)
	}
}
