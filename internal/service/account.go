package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

const DefaultActivityLimit = 10

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type accountRepo interface {
	Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
}

type walletRepo interface {
	CreateForAllCurrencies(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error)
}

type activityRepo interface {
	RecentByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.OperationSummary, error)
	PendingByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.OperationSummary, error)
}

type notificationRepo interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, accountID uuid.UUID) error
}

type valuer interface {
	Value(amount decimal.Decimal, code string) decimal.Decimal
	Reference() string
}

// WalletValuation is one wallet with its balance expressed in the reference unit.
type WalletValuation struct {
	Wallet domain.Wallet
	Value  decimal.Decimal
}

type Portfolio struct {
	Reference string
	Wallets   []WalletValuation
	Total     decimal.Decimal
}

type AccountService struct {
	accounts      accountRepo
	wallets       walletRepo
	activity      activityRepo
	notifications notificationRepo
	rates         valuer
	db            txBeginner
}

func NewAccountService(
	accounts accountRepo,
	wallets walletRepo,
	activity activityRepo,
	notifications notificationRepo,
	rates valuer,
	db txBeginner,
) *AccountService {
	return &AccountService{
		accounts:      accounts,
		wallets:       wallets,
		activity:      activity,
		notifications: notifications,
		rates:         rates,
		db:            db,
	}
}

// Register creates an active account holding one empty wallet per known currency.
func (s *AccountService) Register(ctx context.Context, phone, fullName string) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	phone, fullName = normalizePhone(phone), strings.TrimSpace(fullName)
	if phone == "" || fullName == "" {
		return nil, fmt.Errorf("Register: phone and name are required: %w", domain.ErrInvalidRequest)
	}

	account := &domain.Account{
		ID:        uuid.New(),
		Phone:     phone,
		FullName:  fullName,
		Status:    domain.AccountStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.Create(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	if err := s.wallets.CreateForAllCurrencies(ctx, tx, account.ID); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Register: commit: %w", err)
	}

	log.Infow("account registered", "account_id", account.ID)
	return account, nil
}

// FindAccount resolves a handle that is either an account id or a phone number.
func (s *AccountService) FindAccount(ctx context.Context, handle string) (*domain.Account, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("FindAccount: %w", domain.ErrAccountNotFound)
	}

	if id, err := uuid.Parse(handle); err == nil {
		a, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("FindAccount: %w", err)
		}
		return a, nil
	}

	a, err := s.accounts.GetByPhone(ctx, normalizePhone(handle))
	if err != nil {
		return nil, fmt.Errorf("FindAccount: %w", err)
	}
	return a, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// Portfolio lists the account's wallets valued at the calculator's current rates.
func (s *AccountService) Portfolio(ctx context.Context, accountID uuid.UUID) (*Portfolio, error) {
	wallets, err := s.wallets.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Portfolio: %w", err)
	}

	p := &Portfolio{
		Reference: s.rates.Reference(),
		Wallets:   make([]WalletValuation, 0, len(wallets)),
		Total:     decimal.Zero,
	}
	for _, w := range wallets {
		v := s.rates.Value(w.Balance, w.Currency)
		p.Wallets = append(p.Wallets, WalletValuation{Wallet: w, Value: v})
		p.Total = p.Total.Add(v)
	}
	return p, nil
}

func (s *AccountService) Activity(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.OperationSummary, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	ops, err := s.activity.RecentByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("Activity: %w", err)
	}
	return ops, nil
}

// Pending lists operations waiting on this account's approval.
func (s *AccountService) Pending(ctx context.Context, accountID uuid.UUID) ([]domain.OperationSummary, error) {
	ops, err := s.activity.PendingByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Pending: %w", err)
	}
	return ops, nil
}

func (s *AccountService) Notifications(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	notes, err := s.notifications.ListByAccount(ctx, accountID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("Notifications: %w", err)
	}
	return notes, nil
}

func (s *AccountService) MarkNotificationRead(ctx context.Context, accountID, notificationID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, notificationID, accountID); err != nil {
		return fmt.Errorf("MarkNotificationRead: %w", err)
	}
	return nil
}

func normalizePhone(p string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(p))
}
