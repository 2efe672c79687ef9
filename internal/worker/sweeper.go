package worker

import (
	"context"
	"time"

	"github.com/pkacci/FlashDeal/internal/clock"
	"go.uber.org/zap"
)

type SweeperRepository interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// OfferSweeper deactivates offers whose validity window has passed.
type OfferSweeper struct {
	repo     SweeperRepository
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration
}

func NewOfferSweeper(repo SweeperRepository, clk clock.Clock, logger *zap.Logger, interval time.Duration) *OfferSweeper {
	return &OfferSweeper{
		repo:     repo,
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

func (w *OfferSweeper) Start(ctx context.Context) {
	w.logger.Info("offer sweeper starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("offer sweeper shutting down")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("offer sweep failed", zap.Error(err))
			}
		}
	}
}

func (w *OfferSweeper) RunOnce(ctx context.Context) (int64, error) {
	swept, err := w.repo.SweepExpired(ctx, w.clock.Now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		w.logger.Info("deactivated expired offers", zap.Int64("count", swept))
	}
	return swept, nil
}
