package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"paylink/database"
	"paylink/models"
	"paylink/processor"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	payee    = Actor{ID: 1, Role: RolePayee, Email: "counsel@firm.test"}
	payer    = Actor{ID: 2, Role: RolePayer, Email: "a@b.com"}
	stranger = Actor{ID: 3, Role: RolePayer, Email: "someone@else.test"}
	admin    = Actor{ID: 99, Role: RoleAdmin, Email: "ops@platform.test"}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestDB opens an in-memory SQLite store on a single connection, so
// concurrent callers are serialized the way row locks serialize them in MySQL.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, observers ...LedgerObserver) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts := DefaultOptions()
	opts.PublicBaseURL = "https://pay.test"
	opts.Now = clock.Now
	return New(newTestDB(t), opts, observers...), clock
}

func mustCreateLink(t *testing.T, s *Service, amount string, hours int) *models.PaymentLink {
	t.Helper()
	link, err := s.CreateLink(context.Background(), payee, CreateLinkInput{
		ServiceName:    "Contract Review",
		Amount:         decimal.RequireFromString(amount),
		ExpiresInHours: hours,
		ClientEmail:    payer.Email,
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	return link
}

func mustRecord(t *testing.T, s *Service, link *models.PaymentLink, ref string) *models.Transaction {
	t.Helper()
	txn, err := s.RecordTransaction(context.Background(), RecordInput{
		LinkToken:          &link.Token,
		PayerID:            payer.ID,
		PayeeID:            link.IssuerID,
		GrossAmount:        link.Amount,
		ProcessorReference: ref,
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	return txn
}

func countTransactions(t *testing.T, s *Service, status string) int64 {
	t.Helper()
	var n int64
	q := s.db.Model(&models.Transaction{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func reloadLink(t *testing.T, s *Service, id uint) models.PaymentLink {
	t.Helper()
	var link models.PaymentLink
	if err := s.db.First(&link, id).Error; err != nil {
		t.Fatalf("reload link: %v", err)
	}
	return link
}

func assertCode(t *testing.T, err error, want *Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

type fakeCharger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCharger) InitiateCharge(_ context.Context, req processor.ChargeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("pi_test_%d", f.calls), nil
}

func (f *fakeCharger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []uint
	err  error
}

func (o *recordingObserver) TransactionRecorded(_ context.Context, txn *models.Transaction) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, txn.ID)
	return o.err
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}
