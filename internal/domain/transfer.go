package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

func (s TransferStatus) IsTerminal() bool {
	return s != TransferStatusPending
}

// Transfer moves Amount of one currency from source to destination. The source
// is debited Amount plus commission; the destination is credited Amount exactly.
type Transfer struct {
	ID              uuid.UUID
	SourceAccountID uuid.UUID
	DestAccountID   uuid.UUID
	Currency        string
	Amount          decimal.Decimal
	Status          TransferStatus
	CreatedAt       time.Time
	CompletedAt     *time.Time
}
