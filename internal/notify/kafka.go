package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// KafkaWriter is the subset of *kafka.Writer the sink needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type notificationMessage struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	TransferID string    `json:"transfer_id,omitempty"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

// KafkaSink publishes notifications keyed by account id so one account's
// events stay ordered within a partition. The request id of the settlement
// that produced a notification rides along as a header.
type KafkaSink struct {
	writer KafkaWriter
}

func NewKafkaSink(writer KafkaWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Notify(ctx context.Context, n domain.Notification) error {
	msg := notificationMessage{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		AccountID: n.AccountID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Priority:  int(n.Priority),
		CreatedAt: n.CreatedAt,
	}
	if n.TransferID != nil {
		msg.TransferID = n.TransferID.String()
	}
	if n.ExchangeID != nil {
		msg.ExchangeID = n.ExchangeID.String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("KafkaSink.Notify: marshal: %w", err)
	}

	m := kafka.Message{
		Key:   []byte(msg.AccountID),
		Value: data,
	}
	if id := logging.RequestID(ctx); id != "" {
		m.Headers = []kafka.Header{{Key: logging.RequestIDHeader, Value: []byte(id)}}
	}
	err = s.writer.WriteMessages(ctx, m)
	if err != nil {
		return fmt.Errorf("KafkaSink.Notify: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
