package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/service/confirmation"
)

func TestConfirmer_AnswerPostsSignedDecision(t *testing.T) {
	var gotBody []byte
	var gotSig, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Decision-Signature")
		gotRequestID = r.Header.Get(logging.RequestIDHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &confirmer{
		client:   srv.Client(),
		url:      srv.URL,
		secret:   "s3cret",
		decision: "reject",
		log:      zap.NewNop().Sugar(),
		now:      func() time.Time { return now },
	}

	requested := now.Add(-30 * time.Second)
	raw, err := json.Marshal(confirmation.ApprovalMessage{OperationID: "op-1", Kind: "exchange", RequestedAt: requested})
	require.NoError(t, err)

	msg := kafka.Message{
		Value:   raw,
		Headers: []kafka.Header{{Key: logging.RequestIDHeader, Value: []byte("req-create-1")}},
	}
	require.NoError(t, c.answer(context.Background(), msg))

	var d confirmation.DecisionMessage
	require.NoError(t, json.Unmarshal(gotBody, &d))
	assert.Equal(t, "op-1", d.OperationID)
	assert.Equal(t, "exchange", d.Kind)
	assert.Equal(t, "reject", d.Decision)
	assert.True(t, now.Equal(d.EventTimestamp))
	assert.True(t, requested.Equal(d.RequestedAt), "requested_at is echoed from the approval")
	assert.Equal(t, sign(gotBody, "s3cret"), gotSig)
	assert.Equal(t, "req-create-1", gotRequestID)
}

func TestConfirmer_ServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &confirmer{client: srv.Client(), url: srv.URL, decision: "accept", log: zap.NewNop().Sugar(), now: time.Now}

	err := c.answer(context.Background(), kafka.Message{Value: []byte(`{"operation_id":"op-1","kind":"transfer"}`)})
	assert.Error(t, err)
}

func TestConfirmer_BadApproval(t *testing.T) {
	c := &confirmer{log: zap.NewNop().Sugar(), now: time.Now}
	assert.Error(t, c.answer(context.Background(), kafka.Message{Value: []byte("not-json")}))
}
