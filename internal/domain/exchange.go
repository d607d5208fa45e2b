package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "PENDING"
	ExchangeStatusAccepted  ExchangeStatus = "ACCEPTED"
	ExchangeStatusRejected  ExchangeStatus = "REJECTED"
	ExchangeStatusCompleted ExchangeStatus = "COMPLETED"
	ExchangeStatusCancelled ExchangeStatus = "CANCELLED"
)

func (s ExchangeStatus) IsTerminal() bool {
	switch s {
	case ExchangeStatusRejected, ExchangeStatusCompleted, ExchangeStatusCancelled:
		return true
	default:
		return false
	}
}

// Exchange is a peer-to-peer swap: the initiator gives AmountFrom of
// CurrencyFrom and receives AmountTo of CurrencyTo from the counterparty.
type Exchange struct {
	ID             uuid.UUID
	InitiatorID    uuid.UUID
	CounterpartyID uuid.UUID
	CurrencyFrom   string
	CurrencyTo     string
	AmountFrom     decimal.Decimal
	AmountTo       decimal.Decimal
	Status         ExchangeStatus
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Legs returns the four wallets an exchange touches.
func (e *Exchange) Legs() (initiatorFrom, initiatorTo, counterpartyFrom, counterpartyTo WalletKey) {
	return WalletKey{e.InitiatorID, e.CurrencyFrom},
		WalletKey{e.InitiatorID, e.CurrencyTo},
		WalletKey{e.CounterpartyID, e.CurrencyFrom},
		WalletKey{e.CounterpartyID, e.CurrencyTo}
}
