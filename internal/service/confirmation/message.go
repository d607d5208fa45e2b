package confirmation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// ApprovalMessage is the wire form of an approval request sent to the
// confirmation channel.
type ApprovalMessage struct {
	OperationID   string    `json:"operation_id"`
	Kind          string    `json:"kind"`
	ApproverID    string    `json:"approver_id"`
	ApproverPhone string    `json:"approver_phone"`
	Summary       string    `json:"summary"`
	RequestedAt   time.Time `json:"requested_at"`
}

func newApprovalMessage(req domain.ApprovalRequest) ApprovalMessage {
	return ApprovalMessage{
		OperationID:   req.OperationID.String(),
		Kind:          string(req.Kind),
		ApproverID:    req.ApproverID.String(),
		ApproverPhone: req.ApproverPhone,
		Summary:       req.Summary,
		RequestedAt:   req.RequestedAt,
	}
}

// DecisionMessage is the wire form of an approver's answer. It arrives either
// on the decision topic or through the signed HTTP callback. RequestedAt is
// copied from the ApprovalMessage being answered.
type DecisionMessage struct {
	OperationID    string    `json:"operation_id"`
	Kind           string    `json:"kind"`
	Decision       string    `json:"decision"`
	EventTimestamp time.Time `json:"event_timestamp"`
	RequestedAt    time.Time `json:"requested_at"`
}

func (m DecisionMessage) ToDecision() (domain.Decision, error) {
	id, err := uuid.Parse(m.OperationID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("operation_id: %w", domain.ErrInvalidDecision)
	}
	kind, err := domain.ParseOperationKind(m.Kind)
	if err != nil {
		return domain.Decision{}, err
	}
	outcome, err := domain.ParseDecisionOutcome(m.Decision)
	if err != nil {
		return domain.Decision{}, err
	}
	if m.EventTimestamp.IsZero() {
		return domain.Decision{}, fmt.Errorf("event_timestamp: %w", domain.ErrInvalidDecision)
	}
	return domain.Decision{
		OperationID:    id,
		Kind:           kind,
		Outcome:        outcome,
		EventTimestamp: m.EventTimestamp,
		RequestedAt:    m.RequestedAt,
	}, nil
}
