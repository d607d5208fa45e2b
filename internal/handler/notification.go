package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

type notificationDTO struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	TransferID *uuid.UUID `json:"transfer_id,omitempty"`
	ExchangeID *uuid.UUID `json:"exchange_id,omitempty"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Priority   int        `json:"priority"`
	IsRead     bool       `json:"is_read"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toNotificationDTO(n domain.Notification) notificationDTO {
	return notificationDTO{
		ID:         n.ID,
		Type:       string(n.Type),
		TransferID: n.TransferID,
		ExchangeID: n.ExchangeID,
		Title:      n.Title,
		Message:    n.Message,
		Priority:   int(n.Priority),
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
}

func (h *AccountHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, ok := queryLimit(r, 50)
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notes, err := h.accounts.Notifications(r.Context(), id, unreadOnly, limit)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("notification lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]notificationDTO, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNotificationDTO(n))
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *AccountHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	accountID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	notificationID, appErr := idFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.accounts.MarkNotificationRead(r.Context(), accountID, notificationID); err != nil {
		logging.FromContext(r.Context()).Warnw("mark read failed", "error", err, "notification_id", notificationID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"is_read": true})
}
