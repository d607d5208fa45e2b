package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// activityRow is the flattened shape of the transfers/exchanges union.
type activityRow struct {
	ID              uuid.UUID           `db:"id"`
	Kind            string              `db:"kind"`
	Status          string              `db:"status"`
	SourceID        uuid.UUID           `db:"source_id"`
	DestID          uuid.UUID           `db:"dest_id"`
	Currency        string              `db:"currency"`
	Amount          decimal.Decimal     `db:"amount"`
	CounterCurrency *string             `db:"counter_currency"`
	CounterAmount   decimal.NullDecimal `db:"counter_amount"`
	CreatedAt       time.Time           `db:"created_at"`
}

const activityUnion = `
	SELECT id, 'transfer' AS kind, status, source_account_id AS source_id,
		dest_account_id AS dest_id, currency, amount,
		NULL::varchar AS counter_currency, NULL::numeric AS counter_amount, created_at
	FROM transfers
	WHERE source_account_id = $1 OR dest_account_id = $1
	UNION ALL
	SELECT id, 'exchange' AS kind, status, initiator_id AS source_id,
		counterparty_id AS dest_id, currency_from AS currency, amount_from AS amount,
		currency_to AS counter_currency, amount_to AS counter_amount, created_at
	FROM exchanges
	WHERE initiator_id = $1 OR counterparty_id = $1`

// ActivityRepository serves the read-only history views.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) RecentByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.OperationSummary, error) {
	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM (`+activityUnion+`) a ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("RecentByAccount: %w", err)
	}
	return toSummaries(rows), nil
}

// PendingByAccount lists operations still waiting on accountID's decision:
// its own pending transfers and exchanges offered to it.
func (r *ActivityRepository) PendingByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.OperationSummary, error) {
	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM (`+activityUnion+`) a
		WHERE (a.kind = 'transfer' AND a.status = 'pending' AND a.source_id = $1)
		   OR (a.kind = 'exchange' AND a.status = 'PENDING' AND a.dest_id = $1)
		ORDER BY created_at ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("PendingByAccount: %w", err)
	}
	return toSummaries(rows), nil
}

func toSummaries(rows []activityRow) []domain.OperationSummary {
	out := make([]domain.OperationSummary, 0, len(rows))
	for _, r := range rows {
		s := domain.OperationSummary{
			ID:              r.ID,
			Kind:            domain.OperationKind(r.Kind),
			Status:          r.Status,
			SourceID:        r.SourceID,
			DestID:          r.DestID,
			Currency:        r.Currency,
			Amount:          r.Amount,
			CounterCurrency: r.CounterCurrency,
			CreatedAt:       r.CreatedAt,
		}
		if r.CounterAmount.Valid {
			amt := r.CounterAmount.Decimal
			s.CounterAmount = &amt
		}
		out = append(out, s)
	}
	return out
}
