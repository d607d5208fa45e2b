package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type CommissionRepository struct {
	db *sql.DB
}

func NewCommissionRepository(db *sql.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) Create(ctx context.Context, tx *sql.Tx, c *domain.Commission) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO commissions (id, transfer_id, amount, currency, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TransferID, c.Amount, c.Currency, c.Type, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CommissionRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) (*domain.Commission, error) {
	var c domain.Commission
	err := r.db.QueryRowContext(ctx,
		`SELECT id, transfer_id, amount, currency, type, created_at
		FROM commissions WHERE transfer_id = $1`, transferID,
	).Scan(&c.ID, &c.TransferID, &c.Amount, &c.Currency, &c.Type, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransferID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	return &c, nil
}
