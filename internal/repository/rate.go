package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type RateRepository struct {
	db *sql.DB
}

func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) List(ctx context.Context) ([]domain.Rate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT currency, rate_to_reference, updated_at FROM exchange_rates ORDER BY currency`,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var rates []domain.Rate
	for rows.Next() {
		var rt domain.Rate
		if err := rows.Scan(&rt.Currency, &rt.RateToReference, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		rates = append(rates, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return rates, nil
}
