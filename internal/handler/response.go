package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrAccountNotFound, ErrAccountNotFound},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrAccountExists, ErrAccountExists},
	{domain.ErrAccountInactive, ErrAccountInactive},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidCurrency, ErrInvalidCurrency},
	{domain.ErrSelfTransfer, ErrSelfTransfer},
	{domain.ErrSameCurrency, ErrSameCurrency},
	{domain.ErrNoWallet, ErrNoWallet},
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrAlreadyProcessed, ErrAlreadyProcessed},
	{domain.ErrExpiredRequest, ErrExpiredRequest},
	{domain.ErrInvalidDecision, ErrInvalidDecision},
	{domain.ErrLockTimeout, ErrLockTimeout},
	{domain.ErrDeadlock, ErrLockTimeout},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
}

func RespondDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			RespondAppError(w, m.appErr, nil)
			return
		}
	}
	zap.S().Errorw("unhandled domain error", "error", err)
	RespondAppError(w, ErrInternalError, nil)
}
