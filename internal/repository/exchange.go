package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

const exchangeColumns = `id, initiator_id, counterparty_id, currency_from, currency_to,
	amount_from, amount_to, status, created_at, completed_at`

type ExchangeRepository struct {
	db *sql.DB
}

func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

func (r *ExchangeRepository) Create(ctx context.Context, e *domain.Exchange) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchanges (
			id, initiator_id, counterparty_id, currency_from, currency_to,
			amount_from, amount_to, status, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.InitiatorID, e.CounterpartyID, e.CurrencyFrom, e.CurrencyTo,
		e.AmountFrom, e.AmountTo, e.Status, e.CreatedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchanges WHERE id = $1`, id,
	)
	e, err := scanExchange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *ExchangeRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Exchange, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchanges WHERE id = $1 FOR UPDATE`, id,
	)
	e, err := scanExchange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", translateLockErr(err))
	}
	return e, nil
}

func (r *ExchangeRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ExchangeStatus, completedAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE exchanges SET status = $1, completed_at = $2 WHERE id = $3`,
		status, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanExchange(s scanner) (*domain.Exchange, error) {
	var e domain.Exchange
	err := s.Scan(
		&e.ID, &e.InitiatorID, &e.CounterpartyID, &e.CurrencyFrom, &e.CurrencyTo,
		&e.AmountFrom, &e.AmountTo, &e.Status, &e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
