package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/auth"
)

func callerID(r *http.Request) (uuid.UUID, *AppError) {
	id, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	return id, nil
}

func idFromPath(r *http.Request) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

// partyAccess says what the caller may do with an operation it is asking about.
// Outsiders get not-found so operation ids cannot be probed.
func partyAccess(caller uuid.UUID, allowed uuid.UUID, parties ...uuid.UUID) *AppError {
	if caller == allowed {
		return nil
	}
	for _, p := range parties {
		if caller == p {
			return ErrForbidden
		}
	}
	return ErrResourceNotFound
}

func isParty(caller uuid.UUID, parties ...uuid.UUID) bool {
	for _, p := range parties {
		if caller == p {
			return true
		}
	}
	return false
}
