package fx

import (
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// Calculator converts amounts through a reference unit using the last-known
// rate of each currency. Rates never expire; a refresh overwrites them.
type Calculator struct {
	reference string
	rates     *cache.Cache
}

func NewCalculator(reference string) *Calculator {
	return &Calculator{
		reference: reference,
		rates:     cache.New(cache.NoExpiration, 0),
	}
}

func (c *Calculator) Reference() string {
	return c.reference
}

// Rate returns how many reference units one unit of code is worth.
// Unknown currencies are valued at 1.
func (c *Calculator) Rate(code string) decimal.Decimal {
	if code == c.reference {
		return decimal.NewFromInt(1)
	}
	if v, ok := c.rates.Get(code); ok {
		return v.(decimal.Decimal)
	}
	return decimal.NewFromInt(1)
}

func (c *Calculator) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return domain.RoundAmount(amount)
	}
	toRate := c.Rate(to)
	if toRate.IsZero() {
		return decimal.Zero
	}
	return domain.RoundAmount(amount.Mul(c.Rate(from)).Div(toRate))
}

// Value expresses amount of code in the reference unit.
func (c *Calculator) Value(amount decimal.Decimal, code string) decimal.Decimal {
	return c.Convert(amount, code, c.reference)
}

// Update merges rates into the snapshot. Currencies absent from rates keep
// their previous value.
func (c *Calculator) Update(rates map[string]decimal.Decimal) {
	for code, r := range rates {
		c.rates.Set(code, r, cache.NoExpiration)
	}
}

func (c *Calculator) Snapshot() map[string]decimal.Decimal {
	items := c.rates.Items()
	out := make(map[string]decimal.Decimal, len(items)+1)
	for code, item := range items {
		out[code] = item.Object.(decimal.Decimal)
	}
	out[c.reference] = decimal.NewFromInt(1)
	return out
}
