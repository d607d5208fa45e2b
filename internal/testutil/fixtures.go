package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/repository"
)

var phoneSeq atomic.Int64

// NextPhone returns a unique phone number for seeded accounts.
func NextPhone() string {
	return fmt.Sprintf("+1555%07d", phoneSeq.Add(1))
}

func SeedAccount(t *testing.T, db *sql.DB, fullName string) *domain.Account {
	t.Helper()
	return SeedAccountWithStatus(t, db, fullName, domain.AccountStatusActive)
}

func SeedAccountWithStatus(t *testing.T, db *sql.DB, fullName string, status domain.AccountStatus) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:        uuid.New(),
		Phone:     NextPhone(),
		FullName:  fullName,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, phone, full_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Phone, a.FullName, a.Status, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", fullName, err)
	}
	return a
}

func SeedWallet(t *testing.T, db *sql.DB, accountID uuid.UUID, currency, balance string) *domain.Wallet {
	t.Helper()

	w := &domain.Wallet{
		ID:        uuid.New(),
		AccountID: accountID,
		Currency:  currency,
		Balance:   decimal.RequireFromString(balance),
	}

	err := db.QueryRow(
		`INSERT INTO wallets (id, account_id, currency, balance)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		w.ID, w.AccountID, w.Currency, w.Balance,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		t.Fatalf("seed wallet %s/%s: %v", accountID, currency, err)
	}
	return w
}

// GetWalletBalance returns the balance as a string normalised by decimal so
// tests can compare against literals like "8.99".
func GetWalletBalance(t *testing.T, db *sql.DB, accountID uuid.UUID, currency string) string {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(
		`SELECT balance FROM wallets WHERE account_id = $1 AND currency = $2`,
		accountID, currency,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s/%s: %v", accountID, currency, err)
	}
	return balance.String()
}

func WalletExists(t *testing.T, db *sql.DB, accountID uuid.UUID, currency string) bool {
	t.Helper()

	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM wallets WHERE account_id = $1 AND currency = $2`,
		accountID, currency,
	).Scan(&n)
	if err != nil {
		t.Fatalf("check wallet %s/%s: %v", accountID, currency, err)
	}
	return n > 0
}

func GetTransferStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.TransferStatus {
	t.Helper()

	var status domain.TransferStatus
	if err := db.QueryRow(`SELECT status FROM transfers WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get transfer status %s: %v", id, err)
	}
	return status
}

func GetExchangeStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.ExchangeStatus {
	t.Helper()

	var status domain.ExchangeStatus
	if err := db.QueryRow(`SELECT status FROM exchanges WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get exchange status %s: %v", id, err)
	}
	return status
}

// GetCommission returns the recorded commission amount for a transfer, or ""
// when none was written.
func GetCommission(t *testing.T, db *sql.DB, transferID uuid.UUID) string {
	t.Helper()

	c, err := repository.NewCommissionRepository(db).GetByTransferID(context.Background(), transferID)
	if errors.Is(err, domain.ErrNotFound) {
		return ""
	}
	if err != nil {
		t.Fatalf("get commission %s: %v", transferID, err)
	}
	return c.Amount.String()
}

func CountNotifications(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE account_id = $1`, accountID).Scan(&n); err != nil {
		t.Fatalf("count notifications %s: %v", accountID, err)
	}
	return n
}
