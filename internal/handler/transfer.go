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

type transferService interface {
	CreateTransfer(ctx context.Context, req settlement.CreateTransferRequest) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	Commission(amount decimal.Decimal) decimal.Decimal
}

type accountFinder interface {
	FindAccount(ctx context.Context, handle string) (*domain.Account, error)
}

type approvalRequester interface {
	RequestTransferApproval(ctx context.Context, t *domain.Transfer) bool
	RequestExchangeApproval(ctx context.Context, e *domain.Exchange) bool
	Redispatch(ctx context.Context, kind domain.OperationKind, id uuid.UUID) error
}

type TransferHandler struct {
	transfers transferService
	accounts  accountFinder
	approvals approvalRequester
}

func NewTransferHandler(transfers transferService, accounts accountFinder, approvals approvalRequester) *TransferHandler {
	return &TransferHandler{transfers: transfers, accounts: accounts, approvals: approvals}
}

type createTransferRequest struct {
	To       string `json:"to" validate:"required"`
	Currency string `json:"currency" validate:"required,alphanum,min=2,max=10"`
	Amount   string `json:"amount" validate:"required,numeric"`
}

type transferDTO struct {
	ID              uuid.UUID       `json:"id"`
	SourceAccountID uuid.UUID       `json:"source_account_id"`
	DestAccountID   uuid.UUID       `json:"dest_account_id"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	Commission      decimal.Decimal `json:"commission"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

type createTransferResponse struct {
	Transfer           transferDTO `json:"transfer"`
	ApprovalDispatched bool        `json:"approval_dispatched"`
}

func (h *TransferHandler) toDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:              t.ID,
		SourceAccountID: t.SourceAccountID,
		DestAccountID:   t.DestAccountID,
		Currency:        t.Currency,
		Amount:          t.Amount,
		Commission:      h.transfers.Commission(t.Amount),
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	sourceID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createTransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a decimal number"}})
		return
	}

	dest, err := h.accounts.FindAccount(r.Context(), req.To)
	if err != nil {
		log.Warnw("transfer recipient lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	t, err := h.transfers.CreateTransfer(r.Context(), settlement.CreateTransferRequest{
		SourceAccountID: sourceID,
		DestAccountID:   dest.ID,
		Currency:        req.Currency,
		Amount:          amount,
	})
	if err != nil {
		log.Warnw("transfer creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dispatched := h.approvals.RequestTransferApproval(r.Context(), t)

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", t.ID))
	RespondSuccess(w, http.StatusCreated, createTransferResponse{Transfer: h.toDTO(t), ApprovalDispatched: dispatched})
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, t, ok := h.load(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, h.toDTO(t))
}

// Cancel withdraws a pending transfer; only the source account may do this.
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, t, ok := h.load(w, r)
	if !ok {
		return
	}
	if appErr := partyAccess(caller, t.SourceAccountID, t.DestAccountID); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.transfers.CancelTransfer(r.Context(), t.ID)
	if err != nil {
		logging.FromContext(r.Context()).Warnw("transfer cancel failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, h.toDTO(t))
}

func (h *TransferHandler) Resend(w http.ResponseWriter, r *http.Request) {
	_, t, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.approvals.Redispatch(r.Context(), domain.OperationTransfer, t.ID); err != nil {
		logging.FromContext(r.Context()).Warnw("approval redispatch failed", "error", err, "transfer_id", t.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, map[string]bool{"approval_dispatched": true})
}

// load fetches the transfer named in the path if the caller is a party to it,
// writing the error response otherwise.
func (h *TransferHandler) load(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Transfer, bool) {
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

	t, err := h.transfers.GetTransfer(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return uuid.Nil, nil, false
	}
	if !isParty(caller, t.SourceAccountID, t.DestAccountID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return uuid.Nil, nil, false
	}
	return caller, t, true
}
