package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

// Sink receives settlement notifications after the owning transaction has
// committed. Callers log and ignore a returned error.
type Sink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type notificationRepo interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// StoreSink persists notifications to the per-account inbox.
type StoreSink struct {
	repo notificationRepo
}

func NewStoreSink(repo notificationRepo) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Notify(ctx context.Context, n domain.Notification) error {
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("StoreSink.Notify: %w", err)
	}
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
