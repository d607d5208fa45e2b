package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/config"
	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/notify"
)

type txBeginner interface {
	BeginSettlementTx(ctx context.Context) (*sql.Tx, error)
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type walletRepo interface {
	GetByAccountAndCurrency(ctx context.Context, accountID uuid.UUID, currency string) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, currency string) (*domain.Wallet, error)
	CreateIfMissing(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, currency string) error
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error
}

type transferRepo interface {
	Create(ctx context.Context, t *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransferStatus, completedAt *time.Time) error
}

type exchangeRepo interface {
	Create(ctx context.Context, e *domain.Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Exchange, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ExchangeStatus, completedAt *time.Time) error
}

type commissionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, c *domain.Commission) error
}

type currencyRepo interface {
	Exists(ctx context.Context, code string) (bool, error)
}

type converter interface {
	Convert(amount decimal.Decimal, from, to string) decimal.Decimal
}

// Service settles transfers and exchanges against the wallet ledger. Every
// balance mutation happens inside one settlement transaction with the affected
// wallet rows locked.
type Service struct {
	accounts    accountRepo
	wallets     walletRepo
	transfers   transferRepo
	exchanges   exchangeRepo
	commissions commissionRepo
	currencies  currencyRepo
	rates       converter
	sink        notify.Sink
	db          txBeginner
	config      *config.Config
	now         func() time.Time
}

func NewService(
	accounts accountRepo,
	wallets walletRepo,
	transfers transferRepo,
	exchanges exchangeRepo,
	commissions commissionRepo,
	currencies currencyRepo,
	rates converter,
	sink notify.Sink,
	db txBeginner,
	cfg *config.Config,
) *Service {
	return &Service{
		accounts:    accounts,
		wallets:     wallets,
		transfers:   transfers,
		exchanges:   exchanges,
		commissions: commissions,
		currencies:  currencies,
		rates:       rates,
		sink:        sink,
		db:          db,
		config:      cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) requireCurrency(ctx context.Context, code string) error {
	ok, err := s.currencies.Exists(ctx, code)
	if err != nil {
		return fmt.Errorf("requireCurrency: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", code, domain.ErrInvalidCurrency)
	}
	return nil
}

func (s *Service) requireActive(ctx context.Context, id uuid.UUID, role string) (*domain.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	if !acct.IsActive() {
		return nil, fmt.Errorf("%s: %w", role, domain.ErrAccountInactive)
	}
	return acct, nil
}

// notify runs after commit. A delivery failure never undoes a settlement.
func (s *Service) notify(ctx context.Context, notes ...domain.Notification) {
	if s.sink == nil {
		return
	}
	log := logging.FromContext(ctx)
	for _, n := range notes {
		if err := s.sink.Notify(ctx, n); err != nil {
			log.Warnw("notification delivery failed",
				"account_id", n.AccountID,
				"type", n.Type,
				"error", err,
			)
		}
	}
}

func (s *Service) newNotification(typ domain.NotificationType, accountID uuid.UUID, title, message string, priority domain.NotificationPriority) domain.Notification {
	return domain.Notification{
		ID:        uuid.New(),
		Type:      typ,
		AccountID: accountID,
		Title:     title,
		Message:   message,
		Priority:  priority,
		CreatedAt: s.now(),
	}
}

// lockWalletsInOrder takes FOR UPDATE locks on the given wallets sorted by
// (account id, currency) so concurrent settlements never wait on each other
// in a cycle. Keys in provision are inserted when missing right before they
// are locked, keeping the insert's row lock in the same order. Duplicate keys
// are locked once.
func lockWalletsInOrder(ctx context.Context, tx *sql.Tx, wallets walletRepo, provision []domain.WalletKey, keys ...domain.WalletKey) (map[domain.WalletKey]*domain.Wallet, error) {
	sorted := make([]domain.WalletKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})

	create := make(map[domain.WalletKey]bool, len(provision))
	for _, k := range provision {
		create[k] = true
	}

	result := make(map[domain.WalletKey]*domain.Wallet, len(keys))
	for _, k := range sorted {
		if _, ok := result[k]; ok {
			continue
		}
		if create[k] {
			if err := wallets.CreateIfMissing(ctx, tx, k.AccountID, k.Currency); err != nil {
				return nil, fmt.Errorf("lockWalletsInOrder: %w", err)
			}
		}
		w, err := wallets.GetForUpdate(ctx, tx, k.AccountID, k.Currency)
		if err != nil {
			return nil, fmt.Errorf("lockWalletsInOrder: %w", err)
		}
		result[k] = w
	}
	return result, nil
}

func isSettlementRefusal(err error) bool {
	return errors.Is(err, domain.ErrNoWallet) || errors.Is(err, domain.ErrInsufficientFunds)
}
