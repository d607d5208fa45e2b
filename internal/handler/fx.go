package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

type rateSource interface {
	Reference() string
	Snapshot() map[string]decimal.Decimal
	Convert(amount decimal.Decimal, from, to string) decimal.Decimal
}

type currencyLister interface {
	List(ctx context.Context) ([]domain.Currency, error)
	Exists(ctx context.Context, code string) (bool, error)
}

type FXHandler struct {
	rates      rateSource
	currencies currencyLister
}

func NewFXHandler(rates rateSource, currencies currencyLister) *FXHandler {
	return &FXHandler{rates: rates, currencies: currencies}
}

type rateDTO struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

type ratesResponse struct {
	Reference string    `json:"reference_currency"`
	Rates     []rateDTO `json:"rates"`
	Timestamp string    `json:"timestamp"`
}

type currencyDTO struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	MinDeposit    decimal.Decimal `json:"min_deposit"`
	MinWithdrawal decimal.Decimal `json:"min_withdrawal"`
}

type quoteRequest struct {
	From   string `json:"from" validate:"required,alphanum,min=2,max=10"`
	To     string `json:"to" validate:"required,alphanum,min=2,max=10"`
	Amount string `json:"amount" validate:"required,numeric"`
}

type quoteResponse struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Converted decimal.Decimal `json:"converted"`
	Timestamp string          `json:"timestamp"`
}

// Rates returns the cached rate of every currency against the reference unit.
func (h *FXHandler) Rates(w http.ResponseWriter, r *http.Request) {
	snap := h.rates.Snapshot()
	codes := make([]string, 0, len(snap))
	for code := range snap {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]rateDTO, 0, len(codes))
	for _, code := range codes {
		out = append(out, rateDTO{Currency: code, Rate: snap[code]})
	}

	RespondSuccess(w, http.StatusOK, ratesResponse{
		Reference: h.rates.Reference(),
		Rates:     out,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *FXHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.currencies.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Errorw("currency lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]currencyDTO, 0, len(list))
	for _, c := range list {
		out = append(out, currencyDTO{Code: c.Code, Name: c.Name, MinDeposit: c.MinDeposit, MinWithdrawal: c.MinWithdrawal})
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *FXHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := quoteRequest{From: q.Get("from"), To: q.Get("to"), Amount: q.Get("amount")}
	if fields := validationErrors(validate.Struct(req)); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a decimal number"}})
		return
	}
	if !amount.IsPositive() {
		RespondAppError(w, ErrInvalidAmount, nil)
		return
	}

	for _, code := range []string{req.From, req.To} {
		ok, err := h.currencies.Exists(r.Context(), code)
		if err != nil {
			logging.FromContext(r.Context()).Errorw("currency lookup failed", "error", err)
			RespondAppError(w, ErrInternalError, nil)
			return
		}
		if !ok {
			RespondAppError(w, ErrInvalidCurrency, nil)
			return
		}
	}

	RespondSuccess(w, http.StatusOK, quoteResponse{
		From:      req.From,
		To:        req.To,
		Amount:    amount,
		Converted: h.rates.Convert(amount, req.From, req.To),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
