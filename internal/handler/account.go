package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/service"
)

type accountService interface {
	Register(ctx context.Context, phone, fullName string) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccount(ctx context.Context, handle string) (*domain.Account, error)
	Portfolio(ctx context.Context, accountID uuid.UUID) (*service.Portfolio, error)
	Activity(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.OperationSummary, error)
	Pending(ctx context.Context, accountID uuid.UUID) ([]domain.OperationSummary, error)
	Notifications(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, accountID, notificationID uuid.UUID) error
}

type tokenIssuer interface {
	Issue(acct *domain.Account) (string, time.Time, error)
}

type AccountHandler struct {
	accounts accountService
	tokens   tokenIssuer
}

func NewAccountHandler(accounts accountService, tokens tokenIssuer) *AccountHandler {
	return &AccountHandler{accounts: accounts, tokens: tokens}
}

type registerRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
}

type accountDTO struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	FullName  string    `json:"full_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:        a.ID,
		Phone:     a.Phone,
		FullName:  a.FullName,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

type registerResponse struct {
	Account        accountDTO `json:"account"`
	Token          string     `json:"token"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
}

type walletDTO struct {
	ID       uuid.UUID       `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Value    decimal.Decimal `json:"value"`
}

type portfolioDTO struct {
	Reference string          `json:"reference_currency"`
	Wallets   []walletDTO     `json:"wallets"`
	Total     decimal.Decimal `json:"total_value"`
}

type operationDTO struct {
	ID              uuid.UUID        `json:"id"`
	Kind            string           `json:"kind"`
	Status          string           `json:"status"`
	SourceID        uuid.UUID        `json:"source_account_id"`
	DestID          uuid.UUID        `json:"dest_account_id"`
	Currency        string           `json:"currency"`
	Amount          decimal.Decimal  `json:"amount"`
	CounterCurrency *string          `json:"counter_currency,omitempty"`
	CounterAmount   *decimal.Decimal `json:"counter_amount,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toOperationDTOs(ops []domain.OperationSummary) []operationDTO {
	out := make([]operationDTO, 0, len(ops))
	for _, op := range ops {
		out = append(out, operationDTO{
			ID:              op.ID,
			Kind:            string(op.Kind),
			Status:          op.Status,
			SourceID:        op.SourceID,
			DestID:          op.DestID,
			Currency:        op.Currency,
			Amount:          op.Amount,
			CounterCurrency: op.CounterCurrency,
			CounterAmount:   op.CounterAmount,
			CreatedAt:       op.CreatedAt,
		})
	}
	return out
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.accounts.Register(r.Context(), req.Phone, req.FullName)
	if err != nil {
		log.Warnw("registration failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	token, expires, err := h.tokens.Issue(a)
	if err != nil {
		log.Errorw("failed to issue token", "error", err, "account_id", a.ID)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusCreated, registerResponse{Account: toAccountDTO(a), Token: token, TokenExpiresAt: expires})
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	a, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warnw("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(a))
}

func (h *AccountHandler) Wallets(w http.ResponseWriter, r *http.Request) {
	id, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	p, err := h.accounts.Portfolio(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("portfolio lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := portfolioDTO{Reference: p.Reference, Total: p.Total, Wallets: make([]walletDTO, 0, len(p.Wallets))}
	for _, wv := range p.Wallets {
		dto.Wallets = append(dto.Wallets, walletDTO{
			ID:       wv.Wallet.ID,
			Currency: wv.Wallet.Currency,
			Balance:  wv.Wallet.Balance,
			Value:    wv.Value,
		})
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *AccountHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, ok := queryLimit(r, service.DefaultActivityLimit)
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
		return
	}

	ops, err := h.accounts.Activity(r.Context(), id, limit)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("activity lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toOperationDTOs(ops))
}

func (h *AccountHandler) Pending(w http.ResponseWriter, r *http.Request) {
	id, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	ops, err := h.accounts.Pending(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("pending lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toOperationDTOs(ops))
}

// queryLimit reads ?limit=, capped at 100.
func queryLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, 100), true
}
