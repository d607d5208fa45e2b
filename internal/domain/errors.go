package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountInactive   = errors.New("account is not active")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSelfTransfer      = errors.New("source and destination must differ")
	ErrSameCurrency      = errors.New("currencies must differ")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrNoWallet          = errors.New("no wallet for currency")
	ErrAlreadyProcessed  = errors.New("operation already processed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExpiredRequest    = errors.New("confirmation request expired")
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrLockTimeout       = errors.New("lock acquisition timed out")
	ErrDeadlock          = errors.New("deadlock detected")
	ErrInvalidRequest    = errors.New("invalid request")
)

// IsTransient reports whether err is lock contention that a retry of the
// whole operation can get past.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrDeadlock)
}
