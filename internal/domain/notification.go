package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeTransfer NotificationType = "transaction"
	NotificationTypeExchange NotificationType = "exchange"
	NotificationTypeSystem   NotificationType = "system"
)

type NotificationPriority int

const (
	PriorityLow    NotificationPriority = 1
	PriorityMedium NotificationPriority = 2
	PriorityHigh   NotificationPriority = 3
)

type Notification struct {
	ID         uuid.UUID
	Type       NotificationType
	AccountID  uuid.UUID
	TransferID *uuid.UUID
	ExchangeID *uuid.UUID
	Title      string
	Message    string
	Priority   NotificationPriority
	IsRead     bool
	CreatedAt  time.Time
}
