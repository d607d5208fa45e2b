package fx

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher periodically loads rates from an Oracle into a Calculator.
type Refresher struct {
	oracle   Oracle
	calc     *Calculator
	logger   *zap.SugaredLogger
	interval time.Duration
}

func NewRefresher(oracle Oracle, calc *Calculator, logger *zap.SugaredLogger, interval time.Duration) *Refresher {
	return &Refresher{
		oracle:   oracle,
		calc:     calc,
		logger:   logger,
		interval: interval,
	}
}

// Start refreshes once immediately, then on every tick until ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Infow("rate refresher started", "interval", r.interval)
	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rate refresher stopped")
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh keeps the previous snapshot when the oracle fails.
func (r *Refresher) Refresh(ctx context.Context) {
	rates, err := r.oracle.Rates(ctx)
	if err != nil {
		r.logger.Errorw("failed to refresh rates", "error", err)
		return
	}
	r.calc.Update(rates)
	r.logger.Debugw("rates refreshed", "count", len(rates))
}
