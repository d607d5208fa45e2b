package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletKey identifies a wallet by owner and currency; it is also the lock ordering key.
type WalletKey struct {
	AccountID uuid.UUID
	Currency  string
}

func (k WalletKey) Less(o WalletKey) bool {
	a, b := k.AccountID.String(), o.AccountID.String()
	if a != b {
		return a < b
	}
	return k.Currency < o.Currency
}
