package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/auth"
	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
	"github.com/josh-kwaku/custody-ledger/internal/repository"
)

type idempotencyStore interface {
	Reserve(ctx context.Context, e *repository.IdempotencyEntry) (bool, error)
	Get(ctx context.Context, key string, accountID uuid.UUID) (*repository.IdempotencyEntry, error)
	Complete(ctx context.Context, key string, accountID uuid.UUID, status int, body []byte, expiresAt time.Time) error
	Release(ctx context.Context, key string, accountID uuid.UUID) error
}

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255

	// idempotencyTTL is how long a finished create is replayed.
	idempotencyTTL = 24 * time.Hour
	// reservationLease bounds how long a crashed create can hold its key.
	reservationLease = time.Minute
)

// Idempotency makes transfer and exchange creation safe to retry. The key is
// reserved before the handler runs, so a concurrent duplicate gets
// IDEMPOTENCY_IN_FLIGHT instead of creating a second pending operation. A
// finished create is replayed with X-Idempotent-Replayed and the request id
// that produced it. 5xx responses are not kept: the reservation is released
// and the client may retry with the same key.
func Idempotency(store idempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := logging.FromContext(ctx)

			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				handler.RespondAppError(w, handler.ErrIdempotencyKeyTooLong, nil)
				return
			}

			accountID, ok := auth.AccountIDFromContext(ctx)
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			now := time.Now().UTC()
			entry := &repository.IdempotencyEntry{
				Key:         key,
				AccountID:   accountID,
				RequestHash: requestHash(r.Method, r.URL.Path, body),
				RequestID:   logging.RequestID(ctx),
				CreatedAt:   now,
				ExpiresAt:   now.Add(reservationLease),
			}

			claimed, err := store.Reserve(ctx, entry)
			if err != nil {
				log.Errorw("idempotency reservation failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if !claimed {
				replay(w, r, store, entry)
				return
			}

			release := func() {
				if err := store.Release(context.WithoutCancel(ctx), key, accountID); err != nil {
					log.Errorw("idempotency release failed", "error", err, "idempotency_key", key)
				}
			}
			defer func() {
				if p := recover(); p != nil {
					release()
					panic(p)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				release()
				return
			}
			err = store.Complete(context.WithoutCancel(ctx), key, accountID, rec.statusCode, rec.body.Bytes(), time.Now().UTC().Add(idempotencyTTL))
			if err != nil {
				log.Errorw("idempotency completion failed", "error", err, "idempotency_key", key)
			}
		})
	}
}

// replay answers a request whose key is already held by another one.
func replay(w http.ResponseWriter, r *http.Request, store idempotencyStore, attempt *repository.IdempotencyEntry) {
	log := logging.FromContext(r.Context())

	held, err := store.Get(r.Context(), attempt.Key, attempt.AccountID)
	if err != nil {
		log.Errorw("idempotency lookup failed", "error", err, "idempotency_key", attempt.Key)
		handler.RespondAppError(w, handler.ErrInternalError, nil)
		return
	}
	switch {
	case held == nil:
		// the holder was released between Reserve and Get
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
		return
	case held.RequestHash != attempt.RequestHash:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	case held.InFlight():
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
		return
	}

	log.Infow("idempotent replay",
		"idempotency_key", attempt.Key,
		"original_request_id", held.RequestID,
		"status", held.StatusCode,
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	if held.RequestID != "" {
		w.Header().Set("X-Original-Request-ID", held.RequestID)
	}
	w.WriteHeader(held.StatusCode)
	if _, err := w.Write(held.ResponseBody); err != nil {
		log.Errorw("failed to write idempotent replay", "error", err, "idempotency_key", attempt.Key)
	}
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
