package fx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// Oracle supplies rates to the reference unit keyed by currency code.
type Oracle interface {
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

type rateRepo interface {
	List(ctx context.Context) ([]domain.Rate, error)
}

// StoreOracle reads the persisted exchange_rates table.
type StoreOracle struct {
	repo rateRepo
}

func NewStoreOracle(repo rateRepo) *StoreOracle {
	return &StoreOracle{repo: repo}
}

func (o *StoreOracle) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	rates, err := o.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("StoreOracle.Rates: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		out[r.Currency] = r.RateToReference
	}
	return out, nil
}
