package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
	"github.com/pkacci/FlashDeal/internal/notify"
	"go.uber.org/zap"
)

type CancellationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetOffer(ctx context.Context, offerID string) (domain.Offer, error)
	MarkCancelled(ctx context.Context, reservationID, reason string, now time.Time) error
	IncrementStock(ctx context.Context, offerID string) error
}

type CancellationService struct {
	repo     CancellationRepository
	notifier notify.Notifier
	clock    clock.Clock
	logger   *zap.Logger
	cutoff   time.Duration
}

const (
	defaultCancelCutoff = 30 * time.Minute
	defaultCancelReason = "cancelled by consumer"
)

func NewCancellationService(repo CancellationRepository, notifier notify.Notifier, clk clock.Clock, logger *zap.Logger, opts ...CancellationServiceOption) *CancellationService {
	svc := &CancellationService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		cutoff:   defaultCancelCutoff,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CancellationServiceOption func(*CancellationService)

// WithCancelCutoff overrides how long before offer end cancellation closes.
func WithCancelCutoff(d time.Duration) CancellationServiceOption {
	return func(s *CancellationService) {
		if d > 0 {
			s.cutoff = d
		}
	}
}

// CancelReservation moves a confirmed reservation to cancelled and returns
// its unit to the offer's stock in the same transaction. Refunding the
// consumer stays manual: the owning business gets a notification telling it
// what to refund and to whom.
func (s *CancellationService) CancelReservation(ctx context.Context, consumerID, reservationID, reason string) error {
	if consumerID == "" || reservationID == "" {
		return domain.ErrInvalidID
	}
	if reason == "" {
		reason = defaultCancelReason
	}

	now := s.clock.Now()
	var cancelled domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resv, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if resv.ConsumerID != consumerID {
			return domain.ErrPermissionDenied
		}
		if resv.Status != domain.ReservationStatusConfirmed {
			return domain.ErrNotConfirmed
		}

		offer, err := s.repo.GetOffer(txCtx, resv.OfferID)
		if err != nil {
			return err
		}
		if now.After(offer.EndsAt.Add(-s.cutoff)) {
			return domain.ErrCancellationCutoff
		}

		if err := s.repo.MarkCancelled(txCtx, resv.ID, reason, now); err != nil {
			return err
		}
		if err := s.repo.IncrementStock(txCtx, resv.OfferID); err != nil {
			return err
		}

		cancelled = resv
		return nil
	})
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Refund %s via Pix to the consumer of reservation %s", formatBRL(cancelled.AmountCents), cancelled.ID)
	if err := s.notifier.Notify(ctx, cancelled.BusinessID, "Reservation cancelled", body); err != nil {
		s.logger.Warn("refund notification failed",
			zap.String("reservation_id", cancelled.ID),
			zap.Error(err),
		)
	}
	return nil
}

func formatBRL(cents int64) string {
	return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
}
