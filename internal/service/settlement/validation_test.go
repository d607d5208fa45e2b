package settlement

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/custody-ledger/internal/config"
	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type fakeAccounts map[uuid.UUID]*domain.Account

func (f fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAccountNotFound
}

type fakeWallets struct {
	existing map[domain.WalletKey]bool
	locked   []domain.WalletKey
	steps    []string
}

func (f *fakeWallets) GetByAccountAndCurrency(_ context.Context, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	if f.existing[domain.WalletKey{AccountID: accountID, Currency: currency}] {
		return &domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: currency}, nil
	}
	return nil, domain.ErrNoWallet
}

func (f *fakeWallets) GetForUpdate(_ context.Context, _ *sql.Tx, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	k := domain.WalletKey{AccountID: accountID, Currency: currency}
	f.locked = append(f.locked, k)
	f.steps = append(f.steps, "lock "+accountID.String()[34:]+"/"+currency)
	return &domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: currency}, nil
}

func (f *fakeWallets) CreateIfMissing(_ context.Context, _ *sql.Tx, accountID uuid.UUID, currency string) error {
	f.steps = append(f.steps, "create "+accountID.String()[34:]+"/"+currency)
	return nil
}

func (f *fakeWallets) UpdateBalance(context.Context, *sql.Tx, uuid.UUID, decimal.Decimal) error {
	return nil
}

type fakeTransfers struct {
	transferRepo
	created []*domain.Transfer
}

func (f *fakeTransfers) Create(_ context.Context, t *domain.Transfer) error {
	f.created = append(f.created, t)
	return nil
}

type fakeExchanges struct {
	exchangeRepo
	created []*domain.Exchange
}

func (f *fakeExchanges) Create(_ context.Context, e *domain.Exchange) error {
	f.created = append(f.created, e)
	return nil
}

type fakeCurrencies map[string]bool

func (f fakeCurrencies) Exists(_ context.Context, code string) (bool, error) {
	return f[code], nil
}

type fixedRates map[string]decimal.Decimal

func (f fixedRates) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return domain.RoundAmount(amount.Mul(f[from]).Div(f[to]))
}

type fixture struct {
	svc       *Service
	transfers *fakeTransfers
	exchanges *fakeExchanges
	alice     uuid.UUID
	bob       uuid.UUID
	blocked   uuid.UUID
}

func newFixture() *fixture {
	alice, bob, blocked := uuid.New(), uuid.New(), uuid.New()
	accounts := fakeAccounts{
		alice:   {ID: alice, Status: domain.AccountStatusActive},
		bob:     {ID: bob, Status: domain.AccountStatusActive},
		blocked: {ID: blocked, Status: domain.AccountStatusBlocked},
	}
	wallets := &fakeWallets{existing: map[domain.WalletKey]bool{
		{AccountID: alice, Currency: "BTC"}:   true,
		{AccountID: bob, Currency: "BTC"}:     true,
		{AccountID: alice, Currency: "ETH"}:   true,
		{AccountID: blocked, Currency: "BTC"}: true,
	}}
	transfers := &fakeTransfers{}
	exchanges := &fakeExchanges{}
	rates := fixedRates{"BTC": decimal.NewFromInt(85000), "ETH": decimal.NewFromInt(3000)}

	svc := NewService(accounts, wallets, transfers, exchanges, nil,
		fakeCurrencies{"BTC": true, "ETH": true},
		rates, nil, nil,
		&config.Config{CommissionRate: decimal.RequireFromString("0.01")},
	)
	return &fixture{svc: svc, transfers: transfers, exchanges: exchanges, alice: alice, bob: bob, blocked: blocked}
}

func TestCreateTransfer_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateTransferRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "BTC", Amount: decimal.NewFromInt(1)},
		},
		{
			name:    "zero amount",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "BTC", Amount: decimal.Zero},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "BTC", Amount: decimal.NewFromInt(-1)},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "below smallest unit rounds to zero",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "BTC", Amount: decimal.RequireFromString("0.000000001")},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "self transfer",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.alice, Currency: "BTC", Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "unknown currency",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "XYZ", Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "unknown destination",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: uuid.New(), Currency: "BTC", Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:    "blocked destination",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.blocked, Currency: "BTC", Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrAccountInactive,
		},
		{
			name:    "destination has no wallet",
			req:     CreateTransferRequest{SourceAccountID: f.alice, DestAccountID: f.bob, Currency: "ETH", Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrNoWallet,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := f.svc.CreateTransfer(ctx, tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.TransferStatusPending, tr.Status)
		})
	}
}

func TestCreateExchange_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	fifty := decimal.NewFromInt(50)
	zero := decimal.Zero

	tests := []struct {
		name    string
		req     CreateExchangeRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.bob, CurrencyFrom: "BTC", CurrencyTo: "ETH", AmountFrom: decimal.NewFromInt(1), AmountTo: &fifty},
		},
		{
			name:    "zero amount from",
			req:     CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.bob, CurrencyFrom: "BTC", CurrencyTo: "ETH", AmountFrom: decimal.Zero, AmountTo: &fifty},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "zero amount to",
			req:     CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.bob, CurrencyFrom: "BTC", CurrencyTo: "ETH", AmountFrom: decimal.NewFromInt(1), AmountTo: &zero},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "same currency",
			req:     CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.bob, CurrencyFrom: "BTC", CurrencyTo: "BTC", AmountFrom: decimal.NewFromInt(1), AmountTo: &fifty},
			wantErr: domain.ErrSameCurrency,
		},
		{
			name:    "self exchange",
			req:     CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.alice, CurrencyFrom: "BTC", CurrencyTo: "ETH", AmountFrom: decimal.NewFromInt(1), AmountTo: &fifty},
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "blocked counterparty",
			req:     CreateExchangeRequest{InitiatorID: f.alice, CounterpartyID: f.blocked, CurrencyFrom: "BTC", CurrencyTo: "ETH", AmountFrom: decimal.NewFromInt(1), AmountTo: &fifty},
			wantErr: domain.ErrAccountInactive,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := f.svc.CreateExchange(ctx, tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ExchangeStatusPending, e.Status)
		})
	}
}

func TestCreateExchange_QuotesMissingAmountTo(t *testing.T) {
	f := newFixture()

	e, err := f.svc.CreateExchange(context.Background(), CreateExchangeRequest{
		InitiatorID:    f.alice,
		CounterpartyID: f.bob,
		CurrencyFrom:   "ETH",
		CurrencyTo:     "BTC",
		AmountFrom:     decimal.NewFromInt(17),
	})

	require.NoError(t, err)
	assert.Equal(t, "0.6", e.AmountTo.String())
	require.Len(t, f.exchanges.created, 1)
}

func TestCommission(t *testing.T) {
	f := newFixture()

	assert.Equal(t, "0.01", f.svc.Commission(decimal.NewFromInt(1)).String())
	// half-even at the eighth place
	assert.Equal(t, "0", f.svc.Commission(decimal.RequireFromString("0.0000005")).String())
	assert.Equal(t, "0.00000002", f.svc.Commission(decimal.RequireFromString("0.0000015")).String())
	assert.Equal(t, "0.00000002", f.svc.Commission(decimal.RequireFromString("0.0000025")).String())
}

func TestLockWalletsInOrder_SortsAndDedupes(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	wallets := &fakeWallets{}

	locked, err := lockWalletsInOrder(context.Background(), nil, wallets, nil,
		domain.WalletKey{AccountID: b, Currency: "BTC"},
		domain.WalletKey{AccountID: a, Currency: "ETH"},
		domain.WalletKey{AccountID: a, Currency: "BTC"},
		domain.WalletKey{AccountID: b, Currency: "BTC"},
	)

	require.NoError(t, err)
	assert.Len(t, locked, 3)
	assert.Equal(t, []domain.WalletKey{
		{AccountID: a, Currency: "BTC"},
		{AccountID: a, Currency: "ETH"},
		{AccountID: b, Currency: "BTC"},
	}, wallets.locked)
}

func TestLockWalletsInOrder_ProvisionsInsideTheOrderedPass(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	wallets := &fakeWallets{}

	// b sends BTC for a's ETH: the receive wallets are (a, BTC) and (b, ETH).
	receive := []domain.WalletKey{{AccountID: b, Currency: "ETH"}, {AccountID: a, Currency: "BTC"}}
	_, err := lockWalletsInOrder(context.Background(), nil, wallets, receive,
		domain.WalletKey{AccountID: b, Currency: "BTC"},
		domain.WalletKey{AccountID: a, Currency: "BTC"},
		domain.WalletKey{AccountID: a, Currency: "ETH"},
		domain.WalletKey{AccountID: b, Currency: "ETH"},
	)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"create 0a/BTC", "lock 0a/BTC",
		"lock 0a/ETH",
		"lock 0b/BTC",
		"create 0b/ETH", "lock 0b/ETH",
	}, wallets.steps)
}
