package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/service/settlement"
)

type exchangeService interface {
	CreateExchange(ctx context.Context, req settlement.CreateExchangeRequest) (*domain.Exchange, error)
	GetExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	CancelExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	RejectExchange(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
}

type ExchangeHandler struct {
	exchanges exchangeService
	accounts  accountFinder
	approvals approvalRequester
}

func NewExchangeHandler(exchanges exchangeService, accounts accountFinder, approvals approvalRequester) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges, accounts: accounts, approvals: approvals}
}

// AmountTo is optional; when absent the offer is quoted from current rates.
type createExchangeRequest struct {
	Counterparty string `json:"counterparty" validate:"required"`
	CurrencyFrom string `json:"currency_from" validate:"required,alphanum,min=2,max=10"`
	CurrencyTo   string `json:"currency_to" validate:"required,alphanum,min=2,max=10"`
	AmountFrom   string `json:"amount_from" validate:"required,numeric"`
	AmountTo     string `json:"amount_to,omitempty" validate:"omitempty,numeric"`
}

type exchangeDTO struct {
	ID             uuid.UUID       `json:"id"`
	InitiatorID    uuid.UUID       `json:"initiator_id"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	CurrencyFrom   string          `json:"currency_from"`
	CurrencyTo     string          `json:"currency_to"`
	AmountFrom     decimal.Decimal `json:"amount_from"`
	AmountTo       decimal.Decimal `json:"amount_to"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

func toExchangeDTO(e *domain.Exchange) exchangeDTO {
	return exchangeDTO{
		ID:             e.ID,
		InitiatorID:    e.InitiatorID,
		CounterpartyID: e.CounterpartyID,
		CurrencyFrom:   e.CurrencyFrom,
		CurrencyTo:     e.CurrencyTo,
		AmountFrom:     e.AmountFrom,
		AmountTo:       e.AmountTo,
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt,
		CompletedAt:    e.CompletedAt,
	}
}

type createExchangeResponse struct {
	Exchange           exchangeDTO `json:"exchange"`
	ApprovalDispatched bool        `json:"approval_dispatched"`
}

func (h *ExchangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	initiatorID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createExchangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amountFrom, err := decimal.NewFromString(req.AmountFrom)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount_from", Message: "must be a decimal number"}})
		return
	}
	var amountTo *decimal.Decimal
	if req.AmountTo != "" {
		v, err := decimal.NewFromString(req.AmountTo)
		if err != nil {
			RespondValidationError(w, []FieldError{{Field: "amount_to", Message: "must be a decimal number"}})
			return
		}
		amountTo = &v
	}

	counterparty, err := h.accounts.FindAccount(r.Context(), req.Counterparty)
	if err != nil {
		log.Warnw("exchange counterparty lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	e, err := h.exchanges.CreateExchange(r.Context(), settlement.CreateExchangeRequest{
		InitiatorID:    initiatorID,
		CounterpartyID: counterparty.ID,
		CurrencyFrom:   req.CurrencyFrom,
		CurrencyTo:     req.CurrencyTo,
		AmountFrom:     amountFrom,
		AmountTo:       amountTo,
	})
	if err != nil {
		log.Warnw("exchange creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dispatched := h.approvals.RequestExchangeApproval(r.Context(), e)

	w.Header().Set("Location", fmt.Sprintf("/api/v1/exchanges/%s", e.ID))
	RespondSuccess(w, http.StatusCreated, createExchangeResponse{Exchange: toExchangeDTO(e), ApprovalDispatched: dispatched})
}

func (h *ExchangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, e, ok := h.load(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toExchangeDTO(e))
}

// Cancel withdraws an offer; only the initiator may do this.
func (h *ExchangeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, e, ok := h.load(w, r)
	if !ok {
		return
	}
	if appErr := partyAccess(caller, e.InitiatorID, e.CounterpartyID); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	h.close(w, r, e.ID, h.exchanges.CancelExchange)
}

// Reject declines an offer; only the counterparty may do this.
func (h *ExchangeHandler) Reject(w http.ResponseWriter, r *http.Request) {
	caller, e, ok := h.load(w, r)
	if !ok {
		return
	}
	if appErr := partyAccess(caller, e.CounterpartyID, e.InitiatorID); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	h.close(w, r, e.ID, h.exchanges.RejectExchange)
}

func (h *ExchangeHandler) Resend(w http.ResponseWriter, r *http.Request) {
	_, e, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.approvals.Redispatch(r.Context(), domain.OperationExchange, e.ID); err != nil {
		logging.FromContext(r.Context()).Warnw("approval redispatch failed", "error", err, "exchange_id", e.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, map[string]bool{"approval_dispatched": true})
}

func (h *ExchangeHandler) close(w http.ResponseWriter, r *http.Request, id uuid.UUID, fn func(context.Context, uuid.UUID) (*domain.Exchange, error)) {
	e, err := fn(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warnw("exchange close failed", "error", err, "exchange_id", id)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toExchangeDTO(e))
}

func (h *ExchangeHandler) load(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Exchange, bool) {
	caller, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return uuid.Nil, nil, false
	}
	id, appErr := idFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return uuid.Nil, nil, false
	}

	e, err := h.exchanges.GetExchange(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return uuid.Nil, nil, false
	}
	if !isParty(caller, e.InitiatorID, e.CounterpartyID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return uuid.Nil, nil, false
	}
	return caller, e, true
}
