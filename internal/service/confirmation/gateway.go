package confirmation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// Dispatcher delivers an approval request to the confirmation channel.
type Dispatcher interface {
	SendApprovalRequest(ctx context.Context, req domain.ApprovalRequest) error
}

type settler interface {
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ConfirmTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	Commission(amount decimal.Decimal) decimal.Decimal

	GetExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	AcceptExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	RejectExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
}

type accountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// Resolution reports where a decision left its operation.
type Resolution struct {
	OperationID uuid.UUID
	Kind        domain.OperationKind
	Status      string
}

type Gateway struct {
	settler    settler
	accounts   accountLookup
	dispatcher Dispatcher
	window     time.Duration
	now        func() time.Time

	mu sync.Mutex
	// sentAt holds the last successful dispatch per pending operation.
	sentAt map[uuid.UUID]time.Time
}

func NewGateway(s settler, accounts accountLookup, dispatcher Dispatcher, window time.Duration) *Gateway {
	return &Gateway{
		settler:    s,
		accounts:   accounts,
		dispatcher: dispatcher,
		window:     window,
		now:        time.Now,
		sentAt:     make(map[uuid.UUID]time.Time),
	}
}

// RequestTransferApproval asks the transfer's source account to confirm it.
func (g *Gateway) RequestTransferApproval(ctx context.Context, t *domain.Transfer) bool {
	return g.dispatch(ctx, g.transferRequest(ctx, t))
}

// RequestExchangeApproval asks the counterparty to accept the offer.
func (g *Gateway) RequestExchangeApproval(ctx context.Context, e *domain.Exchange) bool {
	return g.dispatch(ctx, g.exchangeRequest(ctx, e))
}

// Redispatch sends a fresh approval request for an operation that is still
// pending, typically after an earlier answer arrived too late. The new request
// restarts the confirmation window.
func (g *Gateway) Redispatch(ctx context.Context, kind domain.OperationKind, id uuid.UUID) error {
	req, err := g.pendingRequest(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("Redispatch: %w", err)
	}
	if err := g.dispatcher.SendApprovalRequest(ctx, req); err != nil {
		return fmt.Errorf("Redispatch: %w", err)
	}
	g.markSent(req)
	return nil
}

func (g *Gateway) pendingRequest(ctx context.Context, kind domain.OperationKind, id uuid.UUID) (domain.ApprovalRequest, error) {
	switch kind {
	case domain.OperationTransfer:
		t, err := g.settler.GetTransfer(ctx, id)
		if err != nil {
			return domain.ApprovalRequest{}, err
		}
		if t.Status != domain.TransferStatusPending {
			return domain.ApprovalRequest{}, fmt.Errorf("transfer is %s: %w", t.Status, domain.ErrAlreadyProcessed)
		}
		return g.transferRequest(ctx, t), nil
	case domain.OperationExchange:
		e, err := g.settler.GetExchange(ctx, id)
		if err != nil {
			return domain.ApprovalRequest{}, err
		}
		if e.Status != domain.ExchangeStatusPending {
			return domain.ApprovalRequest{}, fmt.Errorf("exchange is %s: %w", e.Status, domain.ErrAlreadyProcessed)
		}
		return g.exchangeRequest(ctx, e), nil
	}
	return domain.ApprovalRequest{}, fmt.Errorf("kind %q: %w", kind, domain.ErrInvalidDecision)
}

// OnDecision applies an approver's answer. A decision is refused before any
// settlement runs when the request it answers is older than the confirmation
// window; a request time in the future counts as fresh.
func (g *Gateway) OnDecision(ctx context.Context, d domain.Decision) (*Resolution, error) {
	log := logging.FromContext(ctx)

	requestedAt, err := g.requestedAt(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("OnDecision: %w", err)
	}
	if age := g.now().Sub(requestedAt); age > g.window {
		log.Warnw("stale decision refused",
			"operation_id", d.OperationID,
			"kind", d.Kind,
			"requested_at", requestedAt,
			"age", age,
		)
		return nil, fmt.Errorf("OnDecision: request for %s is %s old: %w", d.OperationID, age.Truncate(time.Second), domain.ErrExpiredRequest)
	}

	res := &Resolution{OperationID: d.OperationID, Kind: d.Kind}

	switch d.Kind {
	case domain.OperationTransfer:
		var t *domain.Transfer
		var err error
		if d.Outcome == domain.DecisionAccept {
			t, err = g.settler.ConfirmTransfer(ctx, d.OperationID)
		} else {
			t, err = g.settler.CancelTransfer(ctx, d.OperationID)
		}
		if err != nil {
			return nil, fmt.Errorf("OnDecision: %w", err)
		}
		res.Status = string(t.Status)

	case domain.OperationExchange:
		var e *domain.Exchange
		var err error
		if d.Outcome == domain.DecisionAccept {
			e, err = g.settler.AcceptExchange(ctx, d.OperationID)
		} else {
			e, err = g.settler.RejectExchange(ctx, d.OperationID)
		}
		if err != nil {
			return nil, fmt.Errorf("OnDecision: %w", err)
		}
		res.Status = string(e.Status)

	default:
		return nil, fmt.Errorf("OnDecision: kind %q: %w", d.Kind, domain.ErrInvalidDecision)
	}
	g.forget(d.OperationID)

	log.Infow("decision applied",
		"operation_id", d.OperationID,
		"kind", d.Kind,
		"decision", d.Outcome,
		"status", res.Status,
	)
	return res, nil
}

// requestedAt picks the moment the answered request went out: the echoed
// request time, else the last dispatch from this process, else the
// operation's creation time.
func (g *Gateway) requestedAt(ctx context.Context, d domain.Decision) (time.Time, error) {
	if !d.RequestedAt.IsZero() {
		return d.RequestedAt, nil
	}

	g.mu.Lock()
	sent, ok := g.sentAt[d.OperationID]
	g.mu.Unlock()
	if ok {
		return sent, nil
	}

	switch d.Kind {
	case domain.OperationTransfer:
		t, err := g.settler.GetTransfer(ctx, d.OperationID)
		if err != nil {
			return time.Time{}, err
		}
		return t.CreatedAt, nil
	case domain.OperationExchange:
		e, err := g.settler.GetExchange(ctx, d.OperationID)
		if err != nil {
			return time.Time{}, err
		}
		return e.CreatedAt, nil
	}
	return time.Time{}, fmt.Errorf("kind %q: %w", d.Kind, domain.ErrInvalidDecision)
}

// markSent records a dispatch and drops entries whose window has closed,
// since those resolve to expired either way.
func (g *Gateway) markSent(req domain.ApprovalRequest) {
	cutoff := g.now().Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()
	for id, at := range g.sentAt {
		if at.Before(cutoff) {
			delete(g.sentAt, id)
		}
	}
	g.sentAt[req.OperationID] = req.RequestedAt
}

func (g *Gateway) forget(id uuid.UUID) {
	g.mu.Lock()
	delete(g.sentAt, id)
	g.mu.Unlock()
}

func (g *Gateway) dispatch(ctx context.Context, req domain.ApprovalRequest) bool {
	log := logging.FromContext(ctx)

	if err := g.dispatcher.SendApprovalRequest(ctx, req); err != nil {
		log.Errorw("approval request not dispatched",
			"operation_id", req.OperationID,
			"kind", req.Kind,
			"error", err,
		)
		return false
	}
	g.markSent(req)
	log.Infow("approval requested",
		"operation_id", req.OperationID,
		"kind", req.Kind,
		"approver", req.ApproverID,
	)
	return true
}

func (g *Gateway) transferRequest(ctx context.Context, t *domain.Transfer) domain.ApprovalRequest {
	commission := g.settler.Commission(t.Amount)
	summary := fmt.Sprintf("Transfer %s %s to %s. Commission %s %s, total %s %s.",
		t.Amount, t.Currency, g.displayName(ctx, t.DestAccountID),
		commission, t.Currency, t.Amount.Add(commission), t.Currency,
	)
	return g.newRequest(ctx, domain.OperationTransfer, t.ID, t.SourceAccountID, summary)
}

func (g *Gateway) exchangeRequest(ctx context.Context, e *domain.Exchange) domain.ApprovalRequest {
	summary := fmt.Sprintf("%s offers %s %s for your %s %s.",
		g.displayName(ctx, e.InitiatorID), e.AmountFrom, e.CurrencyFrom, e.AmountTo, e.CurrencyTo,
	)
	return g.newRequest(ctx, domain.OperationExchange, e.ID, e.CounterpartyID, summary)
}

func (g *Gateway) newRequest(ctx context.Context, kind domain.OperationKind, id, approverID uuid.UUID, summary string) domain.ApprovalRequest {
	req := domain.ApprovalRequest{
		OperationID: id,
		Kind:        kind,
		ApproverID:  approverID,
		Summary:     summary,
		RequestedAt: g.now().UTC(),
	}
	if acct, err := g.accounts.GetByID(ctx, approverID); err == nil {
		req.ApproverPhone = acct.Phone
	}
	return req
}

func (g *Gateway) displayName(ctx context.Context, id uuid.UUID) string {
	acct, err := g.accounts.GetByID(ctx, id)
	if err != nil {
		return id.String()
	}
	return acct.FullName
}
