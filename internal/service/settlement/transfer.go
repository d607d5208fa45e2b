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

type CreateTransferRequest struct {
	SourceAccountID uuid.UUID
	DestAccountID   uuid.UUID
	Currency        string
	Amount          decimal.Decimal
}

func (s *Service) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	amount := domain.RoundAmount(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("CreateTransfer: %w", domain.ErrInvalidAmount)
	}
	if req.SourceAccountID == req.DestAccountID {
		return nil, fmt.Errorf("CreateTransfer: %w", domain.ErrSelfTransfer)
	}
	if err := s.requireCurrency(ctx, req.Currency); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	if _, err := s.requireActive(ctx, req.SourceAccountID, "source"); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	if _, err := s.requireActive(ctx, req.DestAccountID, "destination"); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	if _, err := s.wallets.GetByAccountAndCurrency(ctx, req.DestAccountID, req.Currency); err != nil {
		return nil, fmt.Errorf("CreateTransfer: destination: %w", err)
	}
	if _, err := s.wallets.GetByAccountAndCurrency(ctx, req.SourceAccountID, req.Currency); err != nil {
		return nil, fmt.Errorf("CreateTransfer: source: %w", err)
	}

	t := &domain.Transfer{
		ID:              uuid.New(),
		SourceAccountID: req.SourceAccountID,
		DestAccountID:   req.DestAccountID,
		Currency:        req.Currency,
		Amount:          amount,
		Status:          domain.TransferStatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.transfers.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	log.Infow("transfer created",
		"transfer_id", t.ID,
		"source_account", t.SourceAccountID,
		"dest_account", t.DestAccountID,
		"amount", t.Amount,
		"currency", t.Currency,
	)
	return t, nil
}

func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	t, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransfer: %w", err)
	}
	return t, nil
}

// Commission is the fee charged on top of a transfer amount.
func (s *Service) Commission(amount decimal.Decimal) decimal.Decimal {
	return domain.RoundAmount(amount.Mul(s.config.CommissionRate))
}

// ConfirmTransfer settles a pending transfer. A refusal (missing wallet or
// insufficient funds) is committed as failed and reported through the
// returned error.
func (s *Service) ConfirmTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	t, commission, err := s.settleTransfer(ctx, id)
	if err != nil {
		if isSettlementRefusal(err) && t != nil {
			log.Infow("transfer failed", "transfer_id", id, "reason", err)
			s.notify(ctx, s.transferFailedNotification(t, err))
		}
		return nil, fmt.Errorf("ConfirmTransfer: %w", err)
	}

	log.Infow("transfer completed",
		"transfer_id", t.ID,
		"amount", t.Amount,
		"commission", commission,
		"currency", t.Currency,
	)
	s.notify(ctx, s.transferCompletedNotifications(t, commission)...)
	return t, nil
}

// settleTransfer returns the transfer alongside a refusal error when the
// failed status was committed.
func (s *Service) settleTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, decimal.Decimal, error) {
	tx, err := s.db.BeginSettlementTx(ctx)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: %w", err)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: transfer is %s: %w", t.Status, domain.ErrAlreadyProcessed)
	}

	srcKey := domain.WalletKey{AccountID: t.SourceAccountID, Currency: t.Currency}
	dstKey := domain.WalletKey{AccountID: t.DestAccountID, Currency: t.Currency}

	locked, err := lockWalletsInOrder(ctx, tx, s.wallets, nil, srcKey, dstKey)
	if err != nil {
		if errors.Is(err, domain.ErrNoWallet) {
			return s.failTransfer(ctx, tx, t, err)
		}
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: %w", err)
	}
	src, dst := locked[srcKey], locked[dstKey]

	commission := s.Commission(t.Amount)
	total := t.Amount.Add(commission)
	if src.Balance.LessThan(total) {
		return s.failTransfer(ctx, tx, t, fmt.Errorf("need %s %s, have %s: %w", total, t.Currency, src.Balance, domain.ErrInsufficientFunds))
	}

	if err := s.wallets.UpdateBalance(ctx, tx, src.ID, src.Balance.Sub(total)); err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: debit: %w", err)
	}
	if err := s.wallets.UpdateBalance(ctx, tx, dst.ID, dst.Balance.Add(t.Amount)); err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: credit: %w", err)
	}

	now := s.now()
	err = s.commissions.Create(ctx, tx, &domain.Commission{
		ID:         uuid.New(),
		TransferID: t.ID,
		Amount:     commission,
		Currency:   t.Currency,
		Type:       domain.CommissionTypeTransfer,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: commission: %w", err)
	}

	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusCompleted, &now); err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("settleTransfer: commit: %w", err)
	}

	t.Status = domain.TransferStatusCompleted
	t.CompletedAt = &now
	return t, commission, nil
}

func (s *Service) failTransfer(ctx context.Context, tx *sql.Tx, t *domain.Transfer, reason error) (*domain.Transfer, decimal.Decimal, error) {
	now := s.now()
	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusFailed, &now); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failTransfer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failTransfer: commit: %w", err)
	}
	t.Status = domain.TransferStatusFailed
	t.CompletedAt = &now
	return t, decimal.Zero, fmt.Errorf("failTransfer: %w", reason)
}

// CancelTransfer is legal only while the transfer is pending.
func (s *Service) CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginSettlementTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("CancelTransfer: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("CancelTransfer: %w", err)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("CancelTransfer: transfer is %s: %w", t.Status, domain.ErrAlreadyProcessed)
	}

	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusCancelled, nil); err != nil {
		return nil, fmt.Errorf("CancelTransfer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CancelTransfer: commit: %w", err)
	}
	t.Status = domain.TransferStatusCancelled

	log.Infow("transfer cancelled", "transfer_id", t.ID)
	n := s.newNotification(domain.NotificationTypeTransfer, t.SourceAccountID,
		"Transfer cancelled",
		fmt.Sprintf("Your transfer of %s %s was cancelled", t.Amount, t.Currency),
		domain.PriorityLow,
	)
	n.TransferID = &t.ID
	s.notify(ctx, n)
	return t, nil
}

func (s *Service) transferCompletedNotifications(t *domain.Transfer, commission decimal.Decimal) []domain.Notification {
	sent := s.newNotification(domain.NotificationTypeTransfer, t.SourceAccountID,
		"Transfer sent",
		fmt.Sprintf("You sent %s %s (commission %s %s)", t.Amount, t.Currency, commission, t.Currency),
		domain.PriorityMedium,
	)
	sent.TransferID = &t.ID

	received := s.newNotification(domain.NotificationTypeTransfer, t.DestAccountID,
		"Transfer received",
		fmt.Sprintf("You received %s %s", t.Amount, t.Currency),
		domain.PriorityMedium,
	)
	received.TransferID = &t.ID
	return []domain.Notification{sent, received}
}

func (s *Service) transferFailedNotification(t *domain.Transfer, reason error) domain.Notification {
	msg := fmt.Sprintf("Your transfer of %s %s could not be completed", t.Amount, t.Currency)
	if errors.Is(reason, domain.ErrInsufficientFunds) {
		msg += ": insufficient funds"
	}
	n := s.newNotification(domain.NotificationTypeTransfer, t.SourceAccountID, "Transfer failed", msg, domain.PriorityHigh)
	n.TransferID = &t.ID
	return n
}
