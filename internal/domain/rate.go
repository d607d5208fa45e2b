package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the value of one unit of Currency in the reference unit.
type Rate struct {
	Currency        string
	RateToReference decimal.Decimal
	UpdatedAt       time.Time
}
