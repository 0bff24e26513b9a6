// Package events publishes ledger activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"paylink/models"

	"github.com/IBM/sarama"
)

const (
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
)

// TransactionEvent is the message body published for every ledger entry.
type TransactionEvent struct {
	Type               string    `json:"event_type"`
	TransactionID      uint      `json:"transaction_id"`
	LinkToken          string    `json:"link_token,omitempty"`
	PayerID            uint      `json:"payer_id"`
	PayeeID            uint      `json:"payee_id"`
	GrossAmount        string    `json:"gross_amount"`
	PlatformFee        string    `json:"platform_fee"`
	PayeeEarnings      string    `json:"payee_earnings"`
	Currency           string    `json:"currency"`
	ProcessorReference string    `json:"processor_reference,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Dial connects a sync producer, retrying while the brokers come up.
func Dial(brokers []string, topic string, attempts int) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	if attempts < 1 {
		attempts = 1
	}
	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= attempts; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Printf("[events] kafka producer connected to %v", brokers)
			return NewPublisher(producer, topic), nil
		}
		log.Printf("[events] kafka not ready (%d/%d): %v", i, attempts, err)
		if i < attempts {
			time.Sleep(3 * time.Second)
		}
	}
	return nil, fmt.Errorf("connect kafka: %w", err)
}

// TransactionRecorded publishes the entry keyed by link token so all events
// for one link land on the same partition.
func (p *Publisher) TransactionRecorded(ctx context.Context, txn *models.Transaction) error {
	event := NewTransactionEvent(txn)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	key := event.LinkToken
	if key == "" {
		key = strconv.FormatUint(uint64(txn.ID), 10)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", event.Type, err)
	}
	log.Printf("[events] published %s for transaction %d (partition=%d offset=%d)", event.Type, txn.ID, partition, offset)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

func NewTransactionEvent(txn *models.Transaction) TransactionEvent {
	event := TransactionEvent{
		Type:          EventTransactionCompleted,
		TransactionID: txn.ID,
		PayerID:       txn.PayerID,
		PayeeID:       txn.PayeeID,
		GrossAmount:   txn.GrossAmount.StringFixed(2),
		PlatformFee:   txn.PlatformFee.StringFixed(2),
		PayeeEarnings: txn.PayeeEarnings.StringFixed(2),
		Currency:      txn.Currency,
		OccurredAt:    txn.CreatedAt.UTC(),
	}
	if txn.Status == models.TransactionFailed {
		event.Type = EventTransactionFailed
	}
	if txn.LinkToken != nil {
		event.LinkToken = *txn.LinkToken
	}
	if txn.ProcessorReference != nil {
		event.ProcessorReference = *txn.ProcessorReference
	}
	return event
}
