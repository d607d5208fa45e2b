package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Decision signature is invalid"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Operation not permitted for this account"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrAccountExists     = &AppError{http.StatusConflict, "ACCOUNT_ALREADY_EXISTS", "An account with this phone already exists"}
	ErrAccountInactive   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_INACTIVE", "Account is not active"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency   = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrSelfTransfer      = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Source and destination must differ"}
	ErrSameCurrency      = &AppError{http.StatusUnprocessableEntity, "SAME_CURRENCY", "Exchange currencies must differ"}
	ErrNoWallet          = &AppError{http.StatusUnprocessableEntity, "NO_WALLET", "No wallet for this currency"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAlreadyProcessed  = &AppError{http.StatusConflict, "ALREADY_PROCESSED", "Operation has already been processed"}
	ErrExpiredRequest    = &AppError{http.StatusGone, "EXPIRED_REQUEST", "Confirmation request has expired"}
	ErrInvalidDecision   = &AppError{http.StatusBadRequest, "INVALID_DECISION", "Decision is malformed"}
	ErrLockTimeout       = &AppError{http.StatusServiceUnavailable, "LOCK_TIMEOUT", "Wallet is busy, please retry"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight   = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", "A request with this idempotency key is still being processed"}
	ErrIdempotencyKeyTooLong = &AppError{http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key must be at most 255 characters"}
)
