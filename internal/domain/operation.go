package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationKind tells the confirmation gateway which state machine an id belongs to.
type OperationKind string

const (
	OperationTransfer OperationKind = "transfer"
	OperationExchange OperationKind = "exchange"
)

func ParseOperationKind(s string) (OperationKind, error) {
	switch OperationKind(s) {
	case OperationTransfer, OperationExchange:
		return OperationKind(s), nil
	}
	return "", fmt.Errorf("operation kind %q: %w", s, ErrInvalidDecision)
}

type DecisionOutcome string

const (
	DecisionAccept DecisionOutcome = "accept"
	DecisionReject DecisionOutcome = "reject"
)

func ParseDecisionOutcome(s string) (DecisionOutcome, error) {
	switch DecisionOutcome(s) {
	case DecisionAccept, DecisionReject:
		return DecisionOutcome(s), nil
	}
	return "", fmt.Errorf("decision %q: %w", s, ErrInvalidDecision)
}

// Decision is an inbound answer from the confirmation channel. RequestedAt
// echoes the approval request being answered and is zero when the channel
// did not send it back.
type Decision struct {
	OperationID    uuid.UUID
	Kind           OperationKind
	Outcome        DecisionOutcome
	EventTimestamp time.Time
	RequestedAt    time.Time
}

// ApprovalRequest is what the confirmation channel delivers to the approver.
type ApprovalRequest struct {
	OperationID   uuid.UUID
	Kind          OperationKind
	ApproverID    uuid.UUID
	ApproverPhone string
	Summary       string
	RequestedAt   time.Time
}

// OperationSummary is a read-model row shared by the activity and pending listings.
// Counter* are set for exchanges only.
type OperationSummary struct {
	ID              uuid.UUID
	Kind            OperationKind
	Status          string
	SourceID        uuid.UUID
	DestID          uuid.UUID
	Currency        string
	Amount          decimal.Decimal
	CounterCurrency *string
	CounterAmount   *decimal.Decimal
	CreatedAt       time.Time
}
