package fx

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type stubOracle struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (s *stubOracle) Rates(context.Context) (map[string]decimal.Decimal, error) {
	s.calls++
	return s.rates, s.err
}

func TestRefresher_RefreshUpdatesCalculator(t *testing.T) {
	calc := NewCalculator("USDT")
	oracle := &stubOracle{rates: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(85000)}}
	r := NewRefresher(oracle, calc, zap.NewNop().Sugar(), 0)

	r.Refresh(context.Background())

	assert.Equal(t, "85000", calc.Rate("BTC").String())
}

func TestRefresher_FailureKeepsLastKnown(t *testing.T) {
	calc := NewCalculator("USDT")
	calc.Update(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(80000)})
	oracle := &stubOracle{err: errors.New("db down")}
	r := NewRefresher(oracle, calc, zap.NewNop().Sugar(), 0)

	r.Refresh(context.Background())

	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, "80000", calc.Rate("BTC").String())
}

type stubRateRepo struct {
	rates []domain.Rate
}

func (s stubRateRepo) List(context.Context) ([]domain.Rate, error) {
	return s.rates, nil
}

func TestStoreOracle_Rates(t *testing.T) {
	o := NewStoreOracle(stubRateRepo{rates: []domain.Rate{
		{Currency: "ETH", RateToReference: decimal.NewFromInt(3000)},
		{Currency: "TON", RateToReference: decimal.RequireFromString("5.5")},
	}})

	rates, err := o.Rates(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "3000", rates["ETH"].String())
	assert.Equal(t, "5.5", rates["TON"].String())
}
