package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
	"github.com/pkacci/FlashDeal/internal/notify"
	"go.uber.org/zap"
)

type VoucherNotifierRepository interface {
	ListConfirmedEndingBetween(ctx context.Context, from, to time.Time) ([]domain.ExpiringVoucher, error)
}

// VoucherNotifier reminds consumers about confirmed vouchers whose offer ends
// within the next hour. Pure side effect, no state transitions.
type VoucherNotifier struct {
	repo     VoucherNotifierRepository
	notifier notify.Notifier
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration
}

const voucherExpiryHorizon = time.Hour

func NewVoucherNotifier(repo VoucherNotifierRepository, notifier notify.Notifier, clk clock.Clock, logger *zap.Logger, interval time.Duration) *VoucherNotifier {
	return &VoucherNotifier{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

func (w *VoucherNotifier) Start(ctx context.Context) {
	w.logger.Info("voucher expiry notifier starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("voucher expiry notifier shutting down")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("voucher expiry notification run failed", zap.Error(err))
			}
		}
	}
}

func (w *VoucherNotifier) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()

	expiring, err := w.repo.ListConfirmedEndingBetween(ctx, now, now.Add(voucherExpiryHorizon))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, v := range expiring {
		body := fmt.Sprintf("Your voucher for %q expires in less than 1 hour.", v.OfferTitle)
		if err := w.notifier.Notify(ctx, v.Reservation.ConsumerID, "Voucher expiring!", body); err != nil {
			w.logger.Warn("voucher expiry notification failed",
				zap.String("reservation_id", v.Reservation.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}
