package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/service/confirmation"
)

type approvalReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// confirmer answers every approval request with a fixed decision, posting it
// back through the signed decision callback under the request id the
// approval was published with.
type confirmer struct {
	reader   approvalReader
	client   *http.Client
	url      string
	secret   string
	decision string
	delay    time.Duration
	log      *zap.SugaredLogger
	now      func() time.Time
}

func (c *confirmer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warnw("fetch approval failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := c.answer(ctx, msg); err != nil {
			c.log.Warnw("approval not answered", "error", err, "offset", msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warnw("commit failed", "error", err, "offset", msg.Offset)
		}
	}
}

func (c *confirmer) answer(ctx context.Context, msg kafka.Message) error {
	var req confirmation.ApprovalMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode approval: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.delay):
	}

	body, err := json.Marshal(confirmation.DecisionMessage{
		OperationID:    req.OperationID,
		Kind:           req.Kind,
		Decision:       c.decision,
		EventTimestamp: c.now().UTC(),
		RequestedAt:    req.RequestedAt,
	})
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Decision-Signature", sign(body, c.secret))
	requestID := confirmation.RequestIDFromHeaders(msg.Headers)
	if requestID != "" {
		httpReq.Header.Set(logging.RequestIDHeader, requestID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post decision: %w", err)
	}
	defer resp.Body.Close()

	c.log.Infow("decision delivered",
		"operation_id", req.OperationID,
		"kind", req.Kind,
		"decision", c.decision,
		"request_id", requestID,
		"status", resp.StatusCode,
	)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("post decision: status %d", resp.StatusCode)
	}
	return nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
