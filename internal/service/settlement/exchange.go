package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// CreateExchangeRequest describes an offer: the initiator gives AmountFrom of
// CurrencyFrom for AmountTo of CurrencyTo. A nil AmountTo is quoted once from
// current rates.
type CreateExchangeRequest struct {
	InitiatorID    uuid.UUID
	CounterpartyID uuid.UUID
	CurrencyFrom   string
	CurrencyTo     string
	AmountFrom     decimal.Decimal
	AmountTo       *decimal.Decimal
}

func (s *Service) CreateExchange(ctx context.Context, req CreateExchangeRequest) (*domain.Exchange, error) {
	log := logging.FromContext(ctx)

	amountFrom := domain.RoundAmount(req.AmountFrom)
	if !amountFrom.IsPositive() {
		return nil, fmt.Errorf("CreateExchange: amount_from: %w", domain.ErrInvalidAmount)
	}
	if req.CurrencyFrom == req.CurrencyTo {
		return nil, fmt.Errorf("CreateExchange: %w", domain.ErrSameCurrency)
	}
	if req.InitiatorID == req.CounterpartyID {
		return nil, fmt.Errorf("CreateExchange: %w", domain.ErrSelfTransfer)
	}
	if err := s.requireCurrency(ctx, req.CurrencyFrom); err != nil {
		return nil, fmt.Errorf("CreateExchange: %w", err)
	}
	if err := s.requireCurrency(ctx, req.CurrencyTo); err != nil {
		return nil, fmt.Errorf("CreateExchange: %w", err)
	}

	var amountTo decimal.Decimal
	if req.AmountTo != nil {
		amountTo = domain.RoundAmount(*req.AmountTo)
	} else {
		amountTo = s.rates.Convert(amountFrom, req.CurrencyFrom, req.CurrencyTo)
	}
	if !amountTo.IsPositive() {
		return nil, fmt.Errorf("CreateExchange: amount_to: %w", domain.ErrInvalidAmount)
	}

	if _, err := s.requireActive(ctx, req.InitiatorID, "initiator"); err != nil {
		return nil, fmt.Errorf("CreateExchange: %w", err)
	}
	if _, err := s.requireActive(ctx, req.CounterpartyID, "counterparty"); err != nil {
		return nil, fmt.Errorf("CreateExchange: %w", err)
	}

	e := &domain.Exchange{
		ID:             uuid.New(),
		InitiatorID:    req.InitiatorID,
		CounterpartyID: req.CounterpartyID,
		CurrencyFrom:   req.CurrencyFrom,
		CurrencyTo:     req.CurrencyTo,
		AmountFrom:     amountFrom,
		AmountTo:       amountTo,
		Status:         domain.ExchangeStatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.exchanges.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("CreateExchange: %w", err)
	}

	log.Infow("exchange created",
		"exchange_id", e.ID,
		"initiator", e.InitiatorID,
		"counterparty", e.CounterpartyID,
		"give", e.AmountFrom.String()+" "+e.CurrencyFrom,
		"get", e.AmountTo.String()+" "+e.CurrencyTo,
		"quoted", req.AmountTo == nil,
	)
	return e, nil
}

func (s *Service) GetExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	e, err := s.exchanges.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetExchange: %w", err)
	}
	return e, nil
}

// AcceptExchange applies the four legs of a pending exchange atomically.
// Missing receive wallets are provisioned; a missing send wallet or a short
// balance on either side commits the exchange as REJECTED.
func (s *Service) AcceptExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	log := logging.FromContext(ctx)

	e, err := s.settleExchange(ctx, id)
	if err != nil {
		if isSettlementRefusal(err) && e != nil {
			log.Infow("exchange rejected on accept", "exchange_id", id, "reason", err)
			s.notify(ctx, s.exchangeRefusedNotifications(e, err)...)
		}
		return nil, fmt.Errorf("AcceptExchange: %w", err)
	}

	log.Infow("exchange completed", "exchange_id", e.ID)
	s.notify(ctx, s.exchangeCompletedNotifications(e)...)
	return e, nil
}

func (s *Service) settleExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	tx, err := s.db.BeginSettlementTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("settleExchange: %w", err)
	}
	defer tx.Rollback()

	e, err := s.exchanges.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("settleExchange: %w", err)
	}
	if e.Status != domain.ExchangeStatusPending {
		return nil, fmt.Errorf("settleExchange: exchange is %s: %w", e.Status, domain.ErrAlreadyProcessed)
	}

	initFrom, initTo, cpFrom, cpTo := e.Legs()

	receive := []domain.WalletKey{initTo, cpFrom}
	locked, err := lockWalletsInOrder(ctx, tx, s.wallets, receive, initFrom, initTo, cpFrom, cpTo)
	if err != nil {
		if errors.Is(err, domain.ErrNoWallet) {
			return s.refuseExchange(ctx, tx, e, err)
		}
		return nil, fmt.Errorf("settleExchange: %w", err)
	}

	if locked[initFrom].Balance.LessThan(e.AmountFrom) {
		return s.refuseExchange(ctx, tx, e, fmt.Errorf("initiator has %s %s: %w", locked[initFrom].Balance, e.CurrencyFrom, domain.ErrInsufficientFunds))
	}
	if locked[cpTo].Balance.LessThan(e.AmountTo) {
		return s.refuseExchange(ctx, tx, e, fmt.Errorf("counterparty has %s %s: %w", locked[cpTo].Balance, e.CurrencyTo, domain.ErrInsufficientFunds))
	}

	legs := []struct {
		key   domain.WalletKey
		delta decimal.Decimal
	}{
		{initFrom, e.AmountFrom.Neg()},
		{cpFrom, e.AmountFrom},
		{cpTo, e.AmountTo.Neg()},
		{initTo, e.AmountTo},
	}
	for _, leg := range legs {
		w := locked[leg.key]
		if err := s.wallets.UpdateBalance(ctx, tx, w.ID, w.Balance.Add(leg.delta)); err != nil {
			return nil, fmt.Errorf("settleExchange: %s/%s: %w", leg.key.AccountID, leg.key.Currency, err)
		}
	}

	now := s.now()
	if err := s.exchanges.UpdateStatus(ctx, tx, e.ID, domain.ExchangeStatusCompleted, &now); err != nil {
		return nil, fmt.Errorf("settleExchange: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("settleExchange: commit: %w", err)
	}

	e.Status = domain.ExchangeStatusCompleted
	e.CompletedAt = &now
	return e, nil
}

func (s *Service) refuseExchange(ctx context.Context, tx *sql.Tx, e *domain.Exchange, reason error) (*domain.Exchange, error) {
	if err := s.exchanges.UpdateStatus(ctx, tx, e.ID, domain.ExchangeStatusRejected, nil); err != nil {
		return nil, fmt.Errorf("refuseExchange: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("refuseExchange: commit: %w", err)
	}
	e.Status = domain.ExchangeStatusRejected
	return e, fmt.Errorf("refuseExchange: %w", reason)
}

// RejectExchange is the counterparty declining a pending offer.
func (s *Service) RejectExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	e, err := s.closeExchange(ctx, id, domain.ExchangeStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("RejectExchange: %w", err)
	}

	n := s.newNotification(domain.NotificationTypeExchange, e.InitiatorID,
		"Exchange rejected",
		fmt.Sprintf("Your offer of %s %s for %s %s was rejected", e.AmountFrom, e.CurrencyFrom, e.AmountTo, e.CurrencyTo),
		domain.PriorityMedium,
	)
	n.ExchangeID = &e.ID
	s.notify(ctx, n)
	return e, nil
}

// CancelExchange is the initiator withdrawing a pending offer.
func (s *Service) CancelExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	e, err := s.closeExchange(ctx, id, domain.ExchangeStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("CancelExchange: %w", err)
	}

	n := s.newNotification(domain.NotificationTypeExchange, e.CounterpartyID,
		"Exchange cancelled",
		fmt.Sprintf("The offer of %s %s for %s %s was withdrawn", e.AmountFrom, e.CurrencyFrom, e.AmountTo, e.CurrencyTo),
		domain.PriorityLow,
	)
	n.ExchangeID = &e.ID
	s.notify(ctx, n)
	return e, nil
}

func (s *Service) closeExchange(ctx context.Context, id uuid.UUID, status domain.ExchangeStatus) (*domain.Exchange, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginSettlementTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("closeExchange: %w", err)
	}
	defer tx.Rollback()

	e, err := s.exchanges.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("closeExchange: %w", err)
	}
	if e.Status != domain.ExchangeStatusPending {
		return nil, fmt.Errorf("closeExchange: exchange is %s: %w", e.Status, domain.ErrAlreadyProcessed)
	}

	if err := s.exchanges.UpdateStatus(ctx, tx, e.ID, status, nil); err != nil {
		return nil, fmt.Errorf("closeExchange: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("closeExchange: commit: %w", err)
	}
	e.Status = status

	log.Infow("exchange closed", "exchange_id", e.ID, "status", status)
	return e, nil
}

func (s *Service) exchangeCompletedNotifications(e *domain.Exchange) []domain.Notification {
	initiator := s.newNotification(domain.NotificationTypeExchange, e.InitiatorID,
		"Exchange completed",
		fmt.Sprintf("You gave %s %s and received %s %s", e.AmountFrom, e.CurrencyFrom, e.AmountTo, e.CurrencyTo),
		domain.PriorityMedium,
	)
	initiator.ExchangeID = &e.ID

	counterparty := s.newNotification(domain.NotificationTypeExchange, e.CounterpartyID,
		"Exchange completed",
		fmt.Sprintf("You gave %s %s and received %s %s", e.AmountTo, e.CurrencyTo, e.AmountFrom, e.CurrencyFrom),
		domain.PriorityMedium,
	)
	counterparty.ExchangeID = &e.ID
	return []domain.Notification{initiator, counterparty}
}

func (s *Service) exchangeRefusedNotifications(e *domain.Exchange, reason error) []domain.Notification {
	msg := fmt.Sprintf("The exchange of %s %s for %s %s could not be settled", e.AmountFrom, e.CurrencyFrom, e.AmountTo, e.CurrencyTo)
	switch {
	case errors.Is(reason, domain.ErrInsufficientFunds):
		msg += ": insufficient funds"
	case errors.Is(reason, domain.ErrNoWallet):
		msg += ": missing wallet"
	}

	out := make([]domain.Notification, 0, 2)
	for _, id := range []uuid.UUID{e.InitiatorID, e.CounterpartyID} {
		n := s.newNotification(domain.NotificationTypeExchange, id, "Exchange rejected", msg, domain.PriorityHigh)
		n.ExchangeID = &e.ID
		out = append(out, n)
	}
	return out
}
