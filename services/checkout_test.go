package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"paylink/models"
	"paylink/processor"

	"github.com/shopspring/decimal"
)

func TestCheckout_ConcurrentRedemptions(t *testing.T) {
	s, _ := newTestService(t)
	link := mustCreateLink(t, s, "50.00", 24)
	charger := &fakeCharger{}
	checkout := NewCheckout(s, charger)

	const attempts = 12
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = checkout.Redeem(context.Background(), payer, link.Token, "pm_card_visa")
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyUsed):
		default:
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", succeeded)
	}
	if n := countTransactions(t, s, models.TransactionCompleted); n != 1 {
		t.Fatalf("expected exactly one completed transaction, got %d", n)
	}
	if got := reloadLink(t, s, link.ID); got.Status != models.LinkStatusRedeemed {
		t.Fatalf("expected redeemed link, got %s", got.Status)
	}
}

func TestCheckout_ProcessorFailureLeavesLinkActive(t *testing.T) {
	s, _ := newTestService(t)
	link := mustCreateLink(t, s, "50.00", 24)
	charger := &fakeCharger{err: &processor.Error{Code: "card_declined", Message: "Your card was declined.", Reference: "pi_declined"}}
	checkout := NewCheckout(s, charger)

	_, err := checkout.Redeem(context.Background(), payer, link.Token, "pm_card_chargeDeclined")
	assertCode(t, err, ErrProcessor)
	if KindOf(err) != KindProcessor {
		t.Fatalf("expected processor kind, got %q", KindOf(err))
	}
	var perr *processor.Error
	if !errors.As(err, &perr) || perr.Code != "card_declined" {
		t.Fatalf("processor cause not preserved: %v", err)
	}
	if got := reloadLink(t, s, link.ID); got.Status != models.LinkStatusActive {
		t.Fatalf("expected active link after failed charge, got %s", got.Status)
	}
	if n := countTransactions(t, s, models.TransactionFailed); n != 1 {
		t.Fatalf("expected failed attempt audited, got %d", n)
	}

	charger.err = nil
	txn, err := checkout.Redeem(context.Background(), payer, link.Token, "pm_card_visa")
	if err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if txn.Status != models.TransactionCompleted {
		t.Fatalf("expected completed, got %s", txn.Status)
	}
}

func TestCheckout_RequiresPaymentMethod(t *testing.T) {
	s, _ := newTestService(t)
	link := mustCreateLink(t, s, "50.00", 24)
	charger := &fakeCharger{}
	_, err := NewCheckout(s, charger).Redeem(context.Background(), payer, link.Token, " ")
	assertCode(t, err, ErrValidation)
	if charger.Calls() != 0 {
		t.Fatal("processor must not be called without a payment method")
	}
}

func TestCheckout_NoProcessorConfigured(t *testing.T) {
	s, _ := newTestService(t)
	link := mustCreateLink(t, s, "50.00", 24)
	_, err := NewCheckout(s, nil).Redeem(context.Background(), payer, link.Token, "pm_card_visa")
	assertCode(t, err, ErrProcessor)
	if !errors.Is(err, processor.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable cause, got %v", err)
	}
}

func TestCheckout_EndToEnd(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()
	charger := &fakeCharger{}
	checkout := NewCheckout(s, charger)

	link, err := s.CreateLink(ctx, payee, CreateLinkInput{
		ServiceName:    "Contract Review",
		Amount:         decimal.RequireFromString("50.00"),
		ExpiresInHours: 24,
		ClientEmail:    "a@b.com",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	clock.Advance(3 * time.Hour)
	txn, err := checkout.Redeem(ctx, payer, link.Token, "pm_card_visa")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	want := map[string]decimal.Decimal{
		"gross":    decimal.RequireFromString("50.00"),
		"fee":      decimal.RequireFromString("2.50"),
		"earnings": decimal.RequireFromString("47.50"),
	}
	if !txn.GrossAmount.Equal(want["gross"]) || !txn.PlatformFee.Equal(want["fee"]) || !txn.PayeeEarnings.Equal(want["earnings"]) {
		t.Fatalf("unexpected amounts %s/%s/%s", txn.GrossAmount, txn.PlatformFee, txn.PayeeEarnings)
	}
	if txn.Status != models.TransactionCompleted {
		t.Fatalf("expected completed, got %s", txn.Status)
	}

	views, total, err := s.ListLinks(ctx, payee, "", Page{})
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if total != 1 || len(views) != 1 || !views[0].IsPaid || views[0].IsExpired {
		t.Fatalf("unexpected listing %+v (total %d)", views, total)
	}

	_, err = checkout.Redeem(ctx, payer, link.Token, "pm_card_visa")
	assertCode(t, err, ErrAlreadyUsed)
	if charger.Calls() != 1 {
		t.Fatalf("second attempt must not reach the processor, got %d calls", charger.Calls())
	}

	short, err := s.CreateLink(ctx, payee, CreateLinkInput{
		ServiceName:    "Consultation",
		Amount:         decimal.RequireFromString("25.00"),
		ExpiresInHours: 1,
		ClientEmail:    "a@b.com",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	before := countTransactions(t, s, "")
	clock.Advance(2 * time.Hour)
	_, err = checkout.Redeem(ctx, payer, short.Token, "pm_card_visa")
	assertCode(t, err, ErrExpired)
	if after := countTransactions(t, s, ""); after != before {
		t.Fatalf("expired redemption created transactions: %d -> %d", before, after)
	}
}

func TestListLinks_Filters(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	expiring := mustCreateLink(t, s, "10.00", 1)
	active := mustCreateLink(t, s, "20.00", 48)
	paid := mustCreateLink(t, s, "30.00", 48)
	mustRecord(t, s, paid, "pi_paid")
	disabled := mustCreateLink(t, s, "40.00", 48)
	if _, err := s.Disable(ctx, payee, disabled.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateLink(ctx, Actor{ID: 5, Role: RolePayee}, CreateLinkInput{
		ServiceName: "Other issuer", Amount: decimal.RequireFromString("5"), ClientEmail: "x@y.com",
	}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)

	cases := map[string][]uint{
		"":         {disabled.ID, paid.ID, active.ID, expiring.ID},
		"active":   {active.ID},
		"expired":  {expiring.ID},
		"redeemed": {paid.ID},
		"disabled": {disabled.ID},
	}
	for status, want := range cases {
		views, total, err := s.ListLinks(ctx, payee, status, Page{})
		if err != nil {
			t.Fatalf("ListLinks(%q): %v", status, err)
		}
		if int(total) != len(want) || len(views) != len(want) {
			t.Fatalf("ListLinks(%q): expected %d links, got %d (total %d)", status, len(want), len(views), total)
		}
		for i, v := range views {
			if v.ID != want[i] {
				t.Fatalf("ListLinks(%q)[%d]: expected link %d, got %d", status, i, want[i], v.ID)
			}
			if v.IsPaid != (v.ID == paid.ID) {
				t.Fatalf("ListLinks(%q): wrong is_paid for link %d", status, v.ID)
			}
			if v.IsExpired != (v.ID == expiring.ID) {
				t.Fatalf("ListLinks(%q): wrong is_expired for link %d", status, v.ID)
			}
		}
	}

	all, total, err := s.ListLinks(ctx, admin, "", Page{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(all) != 2 {
		t.Fatalf("admin listing: expected 2 of 5, got %d of %d", len(all), total)
	}

	_, _, err = s.ListLinks(ctx, payee, "bogus", Page{})
	assertCode(t, err, ErrValidation)
	_, _, err = s.ListLinks(ctx, payer, "", Page{})
	assertCode(t, err, ErrAccessDenied)
}

func TestListTransactions_Scoped(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	link := mustCreateLink(t, s, "50.00", 24)
	mustRecord(t, s, link, "pi_1")

	for _, actor := range []Actor{payee, payer, admin} {
		txns, total, err := s.ListTransactions(ctx, actor, Page{})
		if err != nil {
			t.Fatalf("ListTransactions(%d): %v", actor.ID, err)
		}
		if total != 1 || len(txns) != 1 {
			t.Fatalf("actor %d: expected one transaction, got %d", actor.ID, total)
		}
	}
	txns, total, err := s.ListTransactions(ctx, stranger, Page{})
	if err != nil || total != 0 || len(txns) != 0 {
		t.Fatalf("stranger must see nothing, got %d (%v)", total, err)
	}

	view, err := s.GetLink(ctx, payee, link.ID)
	if err != nil || !view.IsPaid {
		t.Fatalf("GetLink: %+v (%v)", view, err)
	}
	_, err = s.GetLink(ctx, stranger, link.ID)
	assertCode(t, err, ErrAccessDenied)
}

// deletingCharger removes the link while its charge is in flight.
type deletingCharger struct {
	svc    *Service
	linkID uint
}

func (d *deletingCharger) InitiateCharge(ctx context.Context, _ processor.ChargeRequest) (string, error) {
	if err := d.svc.Delete(ctx, payee, d.linkID); err != nil {
		return "", err
	}
	return "pi_after_delete", nil
}

func TestCheckout_LinkDeletedDuringCharge(t *testing.T) {
	s, _ := newTestService(t)
	link := mustCreateLink(t, s, "50.00", 24)
	checkout := NewCheckout(s, &deletingCharger{svc: s, linkID: link.ID})

	_, err := checkout.Redeem(context.Background(), payer, link.Token, "pm_card_visa")
	assertCode(t, err, ErrNotFound)
	if !RefundRequired(err) {
		t.Fatalf("captured charge on a deleted link must be flagged for refund: %v", err)
	}
	if n := countTransactions(t, s, models.TransactionCompleted); n != 0 {
		t.Fatalf("expected no completed entry, got %d", n)
	}
}

func TestRefundRequired(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrAlreadyUsed, true},
		{ErrLinkDisabled, true},
		{ErrNotFound.withMessage("payment link not found"), true},
		{ErrValidation, false},
		{ErrExpired, false},
		{errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		if got := RefundRequired(tc.err); got != tc.want {
			t.Errorf("RefundRequired(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
