package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const CommissionTypeTransfer = "transfer"

type Commission struct {
	ID         uuid.UUID
	TransferID uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Type       string
	CreatedAt  time.Time
}
