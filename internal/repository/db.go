package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

type DB struct {
	pool        *sql.DB
	lockTimeout time.Duration
}

func NewDB(pool *sql.DB, lockTimeout time.Duration) *DB {
	return &DB{pool: pool, lockTimeout: lockTimeout}
}

func (d *DB) Conn() *sql.DB {
	return d.pool
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	return tx, nil
}

// BeginSettlementTx opens a transaction whose row-lock waits are bounded by the
// configured lock timeout. A zero timeout keeps the server default.
func (d *DB) BeginSettlementTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginSettlementTx: %w", err)
	}
	if d.lockTimeout <= 0 {
		return tx, nil
	}

	// set_config(..., true) is the parameterisable form of SET LOCAL.
	timeout := fmt.Sprintf("%dms", d.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("BeginSettlementTx: set lock_timeout: %w", err)
	}
	return tx, nil
}

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlock         = "40P01"
)

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// translateLockErr maps lock contention onto the domain's retryable errors.
func translateLockErr(err error) error {
	switch pgCode(err) {
	case pgLockNotAvailable:
		return domain.ErrLockTimeout
	case pgDeadlock:
		return domain.ErrDeadlock
	}
	return err
}

func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}
