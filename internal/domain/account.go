package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusBlocked AccountStatus = "BLOCKED"
	AccountStatusPending AccountStatus = "PENDING"
)

type Account struct {
	ID        uuid.UUID
	Phone     string
	FullName  string
	Status    AccountStatus
	CreatedAt time.Time
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
