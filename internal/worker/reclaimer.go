package worker

import (
	"context"
	"time"

	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
	"go.uber.org/zap"
)

type ReclaimerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpiredPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	MarkExpired(ctx context.Context, reservationID string) (bool, error)
	IncrementStock(ctx context.Context, offerID string) error
}

// Reclaimer expires pending reservations whose payment window elapsed and
// returns their held stock. Each reservation gets its own transaction, so
// overlapping runs (or a run racing a late webhook) settle on the row's
// current status rather than on the stale scan result.
type Reclaimer struct {
	repo      ReclaimerRepository
	clock     clock.Clock
	logger    *zap.Logger
	window    time.Duration
	interval  time.Duration
	batchSize int
}

func NewReclaimer(repo ReclaimerRepository, clk clock.Clock, logger *zap.Logger, window, interval time.Duration, batchSize int) *Reclaimer {
	return &Reclaimer{
		repo:      repo,
		clock:     clk,
		logger:    logger,
		window:    window,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *Reclaimer) Start(ctx context.Context) {
	w.logger.Info("expiry reclaimer starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry reclaimer shutting down")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reclaim run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce reclaims a single batch and returns how many reservations it expired.
func (w *Reclaimer) RunOnce(ctx context.Context) (int, error) {
	cutoff := w.clock.Now().Add(-w.window)

	stale, err := w.repo.ListExpiredPending(ctx, cutoff, w.batchSize)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, resv := range stale {
		if ctx.Err() != nil {
			return reclaimed, ctx.Err()
		}

		expired := false
		err := w.repo.WithTx(ctx, func(txCtx context.Context) error {
			current, err := w.repo.GetReservationForUpdate(txCtx, resv.ID)
			if err != nil {
				if err == domain.ErrReservationNotFound {
					return nil
				}
				return err
			}
			if current.Status != domain.ReservationStatusPending {
				return nil
			}

			expired, err = w.repo.MarkExpired(txCtx, current.ID)
			if err != nil {
				return err
			}
			if expired && current.StockHeld {
				return w.repo.IncrementStock(txCtx, current.OfferID)
			}
			return nil
		})
		if err != nil {
			w.logger.Error("failed to reclaim reservation",
				zap.String("reservation_id", resv.ID),
				zap.Error(err),
			)
			continue
		}
		if expired {
			reclaimed++
		}
	}

	if reclaimed > 0 {
		w.logger.Info("reclaimed expired reservations", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}
