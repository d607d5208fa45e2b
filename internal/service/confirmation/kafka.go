package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// KafkaWriter is the subset of *kafka.Writer the dispatcher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes approval requests keyed by operation id. The
// request id of the originating call travels as a message header so the
// channel can hand it back with the decision.
type KafkaDispatcher struct {
	writer KafkaWriter
}

func NewKafkaDispatcher(writer KafkaWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

func (d *KafkaDispatcher) SendApprovalRequest(ctx context.Context, req domain.ApprovalRequest) error {
	data, err := json.Marshal(newApprovalMessage(req))
	if err != nil {
		return fmt.Errorf("KafkaDispatcher: marshal: %w", err)
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(req.OperationID.String()),
		Value:   data,
		Headers: RequestIDHeaders(ctx),
	})
	if err != nil {
		return fmt.Errorf("KafkaDispatcher: %w", err)
	}
	return nil
}

// RequestIDHeaders returns the Kafka header carrying ctx's request id, or nil.
func RequestIDHeaders(ctx context.Context) []kafka.Header {
	id := logging.RequestID(ctx)
	if id == "" {
		return nil
	}
	return []kafka.Header{{Key: logging.RequestIDHeader, Value: []byte(id)}}
}

// RequestIDFromHeaders is the inverse of RequestIDHeaders.
func RequestIDFromHeaders(headers []kafka.Header) string {
	for _, h := range headers {
		if h.Key == logging.RequestIDHeader {
			return string(h.Value)
		}
	}
	return ""
}

// LogDispatcher only logs requests. It stands in for the channel when no
// broker is configured; decisions then arrive through the HTTP callback.
type LogDispatcher struct {
	logger *zap.SugaredLogger
}

func NewLogDispatcher(logger *zap.SugaredLogger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) SendApprovalRequest(_ context.Context, req domain.ApprovalRequest) error {
	d.logger.Infow("approval request",
		"operation_id", req.OperationID,
		"kind", req.Kind,
		"approver_id", req.ApproverID,
		"summary", req.Summary,
	)
	return nil
}

// KafkaReader is the subset of *kafka.Reader the consumer needs.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type decisionHandler interface {
	OnDecision(ctx context.Context, d domain.Decision) (*Resolution, error)
}

const (
	maxDecisionAttempts = 3
	fetchRetryDelay     = time.Second
)

// Consumer applies decisions read from the decision topic. Every message is
// committed once handled, including refused or malformed ones; only lock
// timeouts are retried.
type Consumer struct {
	reader  KafkaReader
	gateway decisionHandler
	logger  *zap.SugaredLogger
}

func NewConsumer(reader KafkaReader, gateway decisionHandler, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{reader: reader, gateway: gateway, logger: logger}
}

func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("decision consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("decision consumer stopped")
				return
			}
			c.logger.Errorw("failed to fetch decision", "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("decision consumer stopped")
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Errorw("failed to commit decision offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	requestID := RequestIDFromHeaders(msg.Headers)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := c.logger.With("request_id", requestID, "offset", msg.Offset)
	ctx = logging.WithLogger(logging.WithRequestID(ctx, requestID), log)

	var m DecisionMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		log.Errorw("malformed decision payload", "error", err)
		return
	}
	d, err := m.ToDecision()
	if err != nil {
		log.Errorw("invalid decision", "error", err)
		return
	}

	for attempt := 1; attempt <= maxDecisionAttempts; attempt++ {
		_, err = c.gateway.OnDecision(ctx, d)
		if !domain.IsTransient(err) {
			break
		}
		log.Warnw("decision hit lock contention, retrying",
			"error", err,
			"operation_id", d.OperationID,
			"attempt", attempt,
		)
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrExpiredRequest),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrNoWallet):
		log.Infow("decision refused", "operation_id", d.OperationID, "reason", err)
	default:
		log.Errorw("failed to apply decision", "operation_id", d.OperationID, "error", err)
	}
}
