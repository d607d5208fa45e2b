package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// IdempotencyEntry is an Idempotency-Key claimed by one account for one
// create request. CompletedAt is nil while the create is still running.
type IdempotencyEntry struct {
	Key          string
	AccountID    uuid.UUID
	RequestHash  string
	RequestID    string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	CompletedAt  *time.Time
}

func (e *IdempotencyEntry) InFlight() bool {
	return e.CompletedAt == nil
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Reserve claims e.Key for e.AccountID until e.ExpiresAt. It reports false
// when a live entry already holds the key; an expired entry is taken over.
func (r *IdempotencyRepository) Reserve(ctx context.Context, e *IdempotencyEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, account_id, request_hash, request_id, status_code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (idempotency_key, account_id) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			request_id = EXCLUDED.request_id,
			status_code = 0,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			completed_at = NULL
		WHERE idempotency_cache.expires_at <= now()`,
		e.Key, e.AccountID, e.RequestHash, e.RequestID, e.CreatedAt, e.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Reserve: rows affected: %w", err)
	}
	return n == 1, nil
}

// Get returns the live entry for key, or nil.
func (r *IdempotencyRepository) Get(ctx context.Context, key string, accountID uuid.UUID) (*IdempotencyEntry, error) {
	var e IdempotencyEntry
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, account_id, request_hash, request_id, status_code, response_body, created_at, expires_at, completed_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND account_id = $2 AND expires_at > now()`,
		key, accountID,
	).Scan(&e.Key, &e.AccountID, &e.RequestHash, &e.RequestID, &e.StatusCode, &e.ResponseBody, &e.CreatedAt, &e.ExpiresAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

// Complete stores the response of a reserved create and keeps it for replay
// until expiresAt.
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, accountID uuid.UUID, status int, body []byte, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache
		SET status_code = $3, response_body = $4, expires_at = $5, completed_at = now()
		WHERE idempotency_key = $1 AND account_id = $2 AND completed_at IS NULL`,
		key, accountID, status, body, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Complete: reservation for %q: %w", key, domain.ErrNotFound)
	}
	return nil
}

// Release drops an unfinished reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache
		WHERE idempotency_key = $1 AND account_id = $2 AND completed_at IS NULL`,
		key, accountID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
