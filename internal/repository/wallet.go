package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

const walletColumns = `id, account_id, currency, balance, created_at, updated_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByAccountAndCurrency(ctx context.Context, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 AND currency = $2`,
		accountID, currency,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByAccountAndCurrency: %w", domain.ErrNoWallet)
		}
		return nil, fmt.Errorf("GetByAccountAndCurrency: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 ORDER BY currency`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return wallets, nil
}

// GetForUpdate locks the wallet row until tx ends.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 AND currency = $2 FOR UPDATE`,
		accountID, currency,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %s/%s: %w", accountID, currency, domain.ErrNoWallet)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", translateLockErr(err))
	}
	return w, nil
}

// CreateIfMissing provisions an empty wallet; an existing wallet is left untouched.
func (r *WalletRepository) CreateIfMissing(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, currency string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (id, account_id, currency, balance)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (account_id, currency) DO NOTHING`,
		uuid.New(), accountID, currency,
	)
	if err != nil {
		return fmt.Errorf("CreateIfMissing: %w", translateLockErr(err))
	}
	return nil
}

// CreateForAllCurrencies gives a new account one empty wallet per known currency.
func (r *WalletRepository) CreateForAllCurrencies(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (id, account_id, currency, balance)
		SELECT gen_random_uuid(), $1, code, 0 FROM currencies
		ON CONFLICT (account_id, currency) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("CreateForAllCurrencies: %w", err)
	}
	return nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
		balance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrNotFound)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(&w.ID, &w.AccountID, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
