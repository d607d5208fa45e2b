package confirmation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type fakeSettler struct {
	transfer *domain.Transfer
	exchange *domain.Exchange
	calls    []string
	err      error
}

func (f *fakeSettler) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeSettler) GetTransfer(context.Context, uuid.UUID) (*domain.Transfer, error) {
	return f.transfer, nil
}

func (f *fakeSettler) ConfirmTransfer(context.Context, uuid.UUID) (*domain.Transfer, error) {
	f.record("confirm")
	if f.err != nil {
		return nil, f.err
	}
	t := *f.transfer
	t.Status = domain.TransferStatusCompleted
	return &t, nil
}

func (f *fakeSettler) CancelTransfer(context.Context, uuid.UUID) (*domain.Transfer, error) {
	f.record("cancel")
	t := *f.transfer
	t.Status = domain.TransferStatusCancelled
	return &t, nil
}

func (f *fakeSettler) Commission(amount decimal.Decimal) decimal.Decimal {
	return domain.RoundAmount(amount.Mul(decimal.RequireFromString("0.01")))
}

func (f *fakeSettler) GetExchange(context.Context, uuid.UUID) (*domain.Exchange, error) {
	return f.exchange, nil
}

func (f *fakeSettler) AcceptExchange(context.Context, uuid.UUID) (*domain.Exchange, error) {
	f.record("accept")
	e := *f.exchange
	e.Status = domain.ExchangeStatusCompleted
	return &e, nil
}

func (f *fakeSettler) RejectExchange(context.Context, uuid.UUID) (*domain.Exchange, error) {
	f.record("reject")
	e := *f.exchange
	e.Status = domain.ExchangeStatusRejected
	return &e, nil
}

type fakeAccounts map[uuid.UUID]*domain.Account

func (f fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAccountNotFound
}

type fakeDispatcher struct {
	sent []domain.ApprovalRequest
	err  error
}

func (f *fakeDispatcher) SendApprovalRequest(_ context.Context, req domain.ApprovalRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type gatewayFixture struct {
	gw         *Gateway
	settler    *fakeSettler
	dispatcher *fakeDispatcher
	alice      *domain.Account
	bob        *domain.Account
}

func newGatewayFixture() *gatewayFixture {
	alice := &domain.Account{ID: uuid.New(), Phone: "+15550000001", FullName: "Alice"}
	bob := &domain.Account{ID: uuid.New(), Phone: "+15550000002", FullName: "Bob"}

	s := &fakeSettler{
		transfer: &domain.Transfer{
			ID:              uuid.New(),
			SourceAccountID: alice.ID,
			DestAccountID:   bob.ID,
			Currency:        "BTC",
			Amount:          decimal.NewFromInt(1),
			Status:          domain.TransferStatusPending,
			CreatedAt:       fixedNow,
		},
		exchange: &domain.Exchange{
			ID:             uuid.New(),
			InitiatorID:    alice.ID,
			CounterpartyID: bob.ID,
			CurrencyFrom:   "BTC",
			CurrencyTo:     "ETH",
			AmountFrom:     decimal.NewFromInt(1),
			AmountTo:       decimal.NewFromInt(50),
			Status:         domain.ExchangeStatusPending,
			CreatedAt:      fixedNow,
		},
	}
	d := &fakeDispatcher{}
	gw := NewGateway(s, fakeAccounts{alice.ID: alice, bob.ID: bob}, d, 120*time.Second)
	gw.now = func() time.Time { return fixedNow }

	return &gatewayFixture{gw: gw, settler: s, dispatcher: d, alice: alice, bob: bob}
}

func TestOnDecision_Routing(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.OperationKind
		outcome    domain.DecisionOutcome
		wantCall   string
		wantStatus string
	}{
		{"transfer accept", domain.OperationTransfer, domain.DecisionAccept, "confirm", "completed"},
		{"transfer reject", domain.OperationTransfer, domain.DecisionReject, "cancel", "cancelled"},
		{"exchange accept", domain.OperationExchange, domain.DecisionAccept, "accept", "COMPLETED"},
		{"exchange reject", domain.OperationExchange, domain.DecisionReject, "reject", "REJECTED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newGatewayFixture()

			res, err := f.gw.OnDecision(context.Background(), domain.Decision{
				OperationID:    uuid.New(),
				Kind:           tc.kind,
				Outcome:        tc.outcome,
				EventTimestamp: fixedNow,
				RequestedAt:    fixedNow.Add(-10 * time.Second),
			})

			require.NoError(t, err)
			assert.Equal(t, []string{tc.wantCall}, f.settler.calls)
			assert.Equal(t, tc.wantStatus, res.Status)
		})
	}
}

func TestOnDecision_StalenessWindow(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{name: "fresh", age: 5 * time.Second},
		{name: "exactly at window", age: 120 * time.Second},
		{name: "future timestamp", age: -30 * time.Second},
		{name: "just past window", age: 121 * time.Second, wantErr: domain.ErrExpiredRequest},
		{name: "long expired", age: time.Hour, wantErr: domain.ErrExpiredRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newGatewayFixture()

			_, err := f.gw.OnDecision(context.Background(), domain.Decision{
				OperationID:    f.settler.transfer.ID,
				Kind:           domain.OperationTransfer,
				Outcome:        domain.DecisionAccept,
				EventTimestamp: fixedNow,
				RequestedAt:    fixedNow.Add(-tc.age),
			})

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, f.settler.calls, "stale decisions never reach settlement")
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.settler.calls, 1)
		})
	}
}

func TestOnDecision_OldRequestAnsweredNow(t *testing.T) {
	t.Run("echoed request time", func(t *testing.T) {
		f := newGatewayFixture()

		_, err := f.gw.OnDecision(context.Background(), domain.Decision{
			OperationID:    f.settler.transfer.ID,
			Kind:           domain.OperationTransfer,
			Outcome:        domain.DecisionAccept,
			EventTimestamp: fixedNow,
			RequestedAt:    fixedNow.Add(-time.Hour),
		})

		require.ErrorIs(t, err, domain.ErrExpiredRequest)
		assert.Empty(t, f.settler.calls)
	})

	t.Run("falls back to the transfer creation time", func(t *testing.T) {
		f := newGatewayFixture()
		f.settler.transfer.CreatedAt = fixedNow.Add(-time.Hour)

		_, err := f.gw.OnDecision(context.Background(), domain.Decision{
			OperationID:    f.settler.transfer.ID,
			Kind:           domain.OperationTransfer,
			Outcome:        domain.DecisionAccept,
			EventTimestamp: fixedNow,
		})

		require.ErrorIs(t, err, domain.ErrExpiredRequest)
		assert.Empty(t, f.settler.calls)
	})

	t.Run("falls back to the exchange creation time", func(t *testing.T) {
		f := newGatewayFixture()
		f.settler.exchange.CreatedAt = fixedNow.Add(-time.Hour)

		_, err := f.gw.OnDecision(context.Background(), domain.Decision{
			OperationID:    f.settler.exchange.ID,
			Kind:           domain.OperationExchange,
			Outcome:        domain.DecisionAccept,
			EventTimestamp: fixedNow,
		})

		require.ErrorIs(t, err, domain.ErrExpiredRequest)
		assert.Empty(t, f.settler.calls)
	})

	t.Run("fresh creation time without echo", func(t *testing.T) {
		f := newGatewayFixture()
		f.settler.transfer.CreatedAt = fixedNow.Add(-30 * time.Second)

		res, err := f.gw.OnDecision(context.Background(), domain.Decision{
			OperationID:    f.settler.transfer.ID,
			Kind:           domain.OperationTransfer,
			Outcome:        domain.DecisionAccept,
			EventTimestamp: fixedNow,
		})

		require.NoError(t, err)
		assert.Equal(t, "completed", res.Status)
	})
}

func TestRedispatch_RestartsWindow(t *testing.T) {
	f := newGatewayFixture()
	f.settler.transfer.CreatedAt = fixedNow.Add(-time.Hour)
	stale := domain.Decision{
		OperationID:    f.settler.transfer.ID,
		Kind:           domain.OperationTransfer,
		Outcome:        domain.DecisionAccept,
		EventTimestamp: fixedNow,
	}

	_, err := f.gw.OnDecision(context.Background(), stale)
	require.ErrorIs(t, err, domain.ErrExpiredRequest)

	require.NoError(t, f.gw.Redispatch(context.Background(), domain.OperationTransfer, f.settler.transfer.ID))
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, fixedNow, f.dispatcher.sent[0].RequestedAt)

	t.Run("answer to the old request stays expired", func(t *testing.T) {
		old := stale
		old.RequestedAt = fixedNow.Add(-time.Hour)

		_, err := f.gw.OnDecision(context.Background(), old)
		require.ErrorIs(t, err, domain.ErrExpiredRequest)
	})

	t.Run("answer without echo uses the redispatch time", func(t *testing.T) {
		f.gw.now = func() time.Time { return fixedNow.Add(90 * time.Second) }

		res, err := f.gw.OnDecision(context.Background(), stale)
		require.NoError(t, err)
		assert.Equal(t, "completed", res.Status)
	})

	assert.Equal(t, []string{"confirm"}, f.settler.calls)
}

func TestOnDecision_SettlementErrorPropagates(t *testing.T) {
	f := newGatewayFixture()
	f.settler.err = domain.ErrAlreadyProcessed

	_, err := f.gw.OnDecision(context.Background(), domain.Decision{
		OperationID:    f.settler.transfer.ID,
		Kind:           domain.OperationTransfer,
		Outcome:        domain.DecisionAccept,
		EventTimestamp: fixedNow,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestRequestApproval(t *testing.T) {
	t.Run("transfer goes to the source account", func(t *testing.T) {
		f := newGatewayFixture()

		ok := f.gw.RequestTransferApproval(context.Background(), f.settler.transfer)

		require.True(t, ok)
		require.Len(t, f.dispatcher.sent, 1)
		req := f.dispatcher.sent[0]
		assert.Equal(t, domain.OperationTransfer, req.Kind)
		assert.Equal(t, f.alice.ID, req.ApproverID)
		assert.Equal(t, f.alice.Phone, req.ApproverPhone)
		assert.Equal(t, "Transfer 1 BTC to Bob. Commission 0.01 BTC, total 1.01 BTC.", req.Summary)
		assert.Equal(t, fixedNow, req.RequestedAt)
	})

	t.Run("exchange goes to the counterparty", func(t *testing.T) {
		f := newGatewayFixture()

		ok := f.gw.RequestExchangeApproval(context.Background(), f.settler.exchange)

		require.True(t, ok)
		req := f.dispatcher.sent[0]
		assert.Equal(t, f.bob.ID, req.ApproverID)
		assert.Equal(t, "Alice offers 1 BTC for your 50 ETH.", req.Summary)
	})

	t.Run("dispatch failure reports false", func(t *testing.T) {
		f := newGatewayFixture()
		f.dispatcher.err = errors.New("broker unavailable")

		assert.False(t, f.gw.RequestTransferApproval(context.Background(), f.settler.transfer))
	})
}

func TestRedispatch(t *testing.T) {
	t.Run("pending exchange is re-sent", func(t *testing.T) {
		f := newGatewayFixture()

		require.NoError(t, f.gw.Redispatch(context.Background(), domain.OperationExchange, f.settler.exchange.ID))
		assert.Len(t, f.dispatcher.sent, 1)
	})

	t.Run("terminal transfer is refused", func(t *testing.T) {
		f := newGatewayFixture()
		f.settler.transfer.Status = domain.TransferStatusCompleted

		err := f.gw.Redispatch(context.Background(), domain.OperationTransfer, f.settler.transfer.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
		assert.Empty(t, f.dispatcher.sent)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newGatewayFixture()

		err := f.gw.Redispatch(context.Background(), domain.OperationKind("loan"), uuid.New())
		assert.ErrorIs(t, err, domain.ErrInvalidDecision)
	})
}

func TestDecisionMessage_ToDecision(t *testing.T) {
	id := uuid.New()

	d, err := DecisionMessage{
		OperationID:    id.String(),
		Kind:           "exchange",
		Decision:       "reject",
		EventTimestamp: fixedNow,
		RequestedAt:    fixedNow.Add(-time.Minute),
	}.ToDecision()
	require.NoError(t, err)
	assert.Equal(t, id, d.OperationID)
	assert.Equal(t, fixedNow.Add(-time.Minute), d.RequestedAt)
	assert.Equal(t, domain.OperationExchange, d.Kind)
	assert.Equal(t, domain.DecisionReject, d.Outcome)

	bad := []DecisionMessage{
		{OperationID: "nope", Kind: "transfer", Decision: "accept", EventTimestamp: fixedNow},
		{OperationID: id.String(), Kind: "loan", Decision: "accept", EventTimestamp: fixedNow},
		{OperationID: id.String(), Kind: "transfer", Decision: "maybe", EventTimestamp: fixedNow},
		{OperationID: id.String(), Kind: "transfer", Decision: "accept"},
	}
	for _, m := range bad {
		_, err := m.ToDecision()
		assert.ErrorIs(t, err, domain.ErrInvalidDecision)
	}
}
