package domain

import "github.com/shopspring/decimal"

// Currency is reference data keyed by its code (e.g. "BTC").
type Currency struct {
	Code          string
	Name          string
	MinDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
}

// AmountScale is the number of fractional digits kept for every stored amount.
const AmountScale int32 = 8

// RoundAmount applies the ledger rounding rule: half-even at AmountScale places.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(AmountScale)
}
