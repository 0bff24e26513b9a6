package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"paylink/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
)

func completedTxn() *models.Transaction {
	token := "tok_abc"
	ref := "pi_1"
	return &models.Transaction{
		ID:                 42,
		LinkToken:          &token,
		PayerID:            7,
		PayeeID:            3,
		GrossAmount:        decimal.RequireFromString("50"),
		PlatformFee:        decimal.RequireFromString("2.5"),
		PayeeEarnings:      decimal.RequireFromString("47.5"),
		Currency:           "usd",
		ProcessorReference: &ref,
		Status:             models.TransactionCompleted,
		CreatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublisher_TransactionRecorded(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "paylink.transactions" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "tok_abc" {
			return errors.New("expected link token key, got " + string(key))
		}
		raw, _ := msg.Value.Encode()
		var ev TransactionEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.Type != EventTransactionCompleted || ev.GrossAmount != "50.00" || ev.PlatformFee != "2.50" || ev.PayeeEarnings != "47.50" {
			return errors.New("unexpected event body " + string(raw))
		}
		return nil
	})

	p := NewPublisher(producer, "paylink.transactions")
	if err := p.TransactionRecorded(context.Background(), completedTxn()); err != nil {
		t.Fatalf("TransactionRecorded: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisher(producer, "paylink.transactions")
	err := p.TransactionRecorded(context.Background(), completedTxn())
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
}

func TestNewTransactionEvent_Failed(t *testing.T) {
	txn := completedTxn()
	txn.Status = models.TransactionFailed
	txn.LinkToken = nil
	txn.ProcessorReference = nil
	ev := NewTransactionEvent(txn)
	if ev.Type != EventTransactionFailed || ev.LinkToken != "" || ev.ProcessorReference != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
