package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/service/confirmation"
)

const decisionSignatureHeader = "X-Decision-Signature"

type decisionApplier interface {
	OnDecision(ctx context.Context, d domain.Decision) (*confirmation.Resolution, error)
}

// DecisionHandler receives approver answers pushed by the confirmation channel.
type DecisionHandler struct {
	gateway decisionApplier
	secret  string
}

func NewDecisionHandler(gateway decisionApplier, secret string) *DecisionHandler {
	return &DecisionHandler{gateway: gateway, secret: secret}
}

type decisionPayload struct {
	confirmation.DecisionMessage
}

func (p decisionPayload) validate() []FieldError {
	var errs []FieldError

	if p.OperationID == "" {
		errs = append(errs, FieldError{Field: "operation_id", Message: "required"})
	} else if _, err := uuid.Parse(p.OperationID); err != nil {
		errs = append(errs, FieldError{Field: "operation_id", Message: "must be a valid UUID"})
	}
	if p.Kind == "" {
		errs = append(errs, FieldError{Field: "kind", Message: "required"})
	}
	if p.Decision == "" {
		errs = append(errs, FieldError{Field: "decision", Message: "required"})
	}
	if p.EventTimestamp.IsZero() {
		errs = append(errs, FieldError{Field: "event_timestamp", Message: "required"})
	}
	return errs
}

type resolutionDTO struct {
	OperationID uuid.UUID `json:"operation_id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
}

func (h *DecisionHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Errorw("failed to read decision body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if !verifyHMAC(body, r.Header.Get(decisionSignatureHeader), h.secret) {
		log.Warnw("decision signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload decisionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warnw("failed to parse decision payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	d, err := payload.ToDecision()
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	res, err := h.gateway.OnDecision(r.Context(), d)
	if err != nil {
		log.Infow("decision not applied", "error", err, "operation_id", d.OperationID, "kind", d.Kind)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, resolutionDTO{
		OperationID: res.OperationID,
		Kind:        string(res.Kind),
		Status:      res.Status,
	})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
