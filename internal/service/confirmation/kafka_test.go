package confirmation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

// fakeReader yields queued messages, then cancels the consumer's context.
type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type recordingHandler struct {
	decisions  []domain.Decision
	requestIDs []string
	errs       []error
}

func (r *recordingHandler) OnDecision(ctx context.Context, d domain.Decision) (*Resolution, error) {
	r.decisions = append(r.decisions, d)
	r.requestIDs = append(r.requestIDs, logging.RequestID(ctx))
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return nil, err
	}
	return &Resolution{OperationID: d.OperationID, Kind: d.Kind}, nil
}

func decisionValue(t *testing.T, m DecisionMessage) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestKafkaDispatcher_KeyedByOperation(t *testing.T) {
	w := &fakeWriter{}
	req := domain.ApprovalRequest{
		OperationID: uuid.New(),
		Kind:        domain.OperationTransfer,
		ApproverID:  uuid.New(),
		Summary:     "Transfer 1 BTC",
		RequestedAt: time.Now().UTC(),
	}

	require.NoError(t, NewKafkaDispatcher(w).SendApprovalRequest(context.Background(), req))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, req.OperationID.String(), string(w.msgs[0].Key))

	var got ApprovalMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "transfer", got.Kind)
	assert.Equal(t, req.Summary, got.Summary)
}

func TestConsumer_AppliesAndCommitsEveryMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := uuid.New()
	reader := &fakeReader{
		cancel: cancel,
		queue: []kafka.Message{
			{Offset: 1, Value: decisionValue(t, DecisionMessage{OperationID: id.String(), Kind: "transfer", Decision: "accept", EventTimestamp: time.Now()})},
			{Offset: 2, Value: []byte("{not json")},
			{Offset: 3, Value: decisionValue(t, DecisionMessage{OperationID: id.String(), Kind: "loan", Decision: "accept", EventTimestamp: time.Now()})},
		},
	}
	handler := &recordingHandler{}

	NewConsumer(reader, handler, zap.NewNop().Sugar()).Start(ctx)

	require.Len(t, handler.decisions, 1)
	assert.Equal(t, id, handler.decisions[0].OperationID)
	assert.Len(t, reader.committed, 3, "malformed messages are committed so they do not block the partition")
}

func TestConsumer_RetriesLockContention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		queue: []kafka.Message{
			{Value: decisionValue(t, DecisionMessage{OperationID: uuid.NewString(), Kind: "exchange", Decision: "accept", EventTimestamp: time.Now()})},
		},
	}
	handler := &recordingHandler{errs: []error{domain.ErrLockTimeout, domain.ErrDeadlock}}

	NewConsumer(reader, handler, zap.NewNop().Sugar()).Start(ctx)

	assert.Len(t, handler.decisions, 3)
	assert.Len(t, reader.committed, 1)
}

func TestConsumer_DoesNotRetryRefusals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		queue: []kafka.Message{
			{Value: decisionValue(t, DecisionMessage{OperationID: uuid.NewString(), Kind: "transfer", Decision: "accept", EventTimestamp: time.Now()})},
		},
	}
	handler := &recordingHandler{errs: []error{domain.ErrExpiredRequest}}

	NewConsumer(reader, handler, zap.NewNop().Sugar()).Start(ctx)

	assert.Len(t, handler.decisions, 1)
}

func TestKafkaDispatcher_CarriesRequestID(t *testing.T) {
	w := &fakeWriter{}
	ctx := logging.WithRequestID(context.Background(), "req-42")

	require.NoError(t, NewKafkaDispatcher(w).SendApprovalRequest(ctx, domain.ApprovalRequest{OperationID: uuid.New()}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "req-42", RequestIDFromHeaders(w.msgs[0].Headers))

	w = &fakeWriter{}
	require.NoError(t, NewKafkaDispatcher(w).SendApprovalRequest(context.Background(), domain.ApprovalRequest{OperationID: uuid.New()}))
	assert.Empty(t, w.msgs[0].Headers)
}

func TestConsumer_PropagatesRequestID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	value := decisionValue(t, DecisionMessage{OperationID: uuid.NewString(), Kind: "transfer", Decision: "accept", EventTimestamp: time.Now()})
	reader := &fakeReader{
		cancel: cancel,
		queue: []kafka.Message{
			{Value: value, Headers: []kafka.Header{{Key: logging.RequestIDHeader, Value: []byte("req-from-approval")}}},
			{Value: value},
		},
	}
	handler := &recordingHandler{}

	NewConsumer(reader, handler, zap.NewNop().Sugar()).Start(ctx)

	require.Len(t, handler.requestIDs, 2)
	assert.Equal(t, "req-from-approval", handler.requestIDs[0])
	_, err := uuid.Parse(handler.requestIDs[1])
	assert.NoError(t, err, "a decision without a request id gets a fresh one")
}
