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

// Event kinds the Pix gateway sends for a settled payment. Anything else is
// acknowledged without processing so the gateway stops redelivering.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

// PaymentEvent is a gateway payment notification after transport-level
// authentication and decoding.
type PaymentEvent struct {
	Kind             string
	CorrelationToken string
	TransactionID    string
}

type WebhookRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindByCorrelationTokenForUpdate(ctx context.Context, token string) (*domain.Reservation, error)
	MarkConfirmed(ctx context.Context, reservationID, voucherCode, gatewayTxID string, now time.Time) error
	GetOffer(ctx context.Context, offerID string) (domain.Offer, error)
}

type CodeGenerator interface {
	Generate() (string, error)
}

type WebhookService struct {
	repo     WebhookRepository
	codes    CodeGenerator
	notifier notify.Notifier
	clock    clock.Clock
	logger   *zap.Logger
}

func NewWebhookService(repo WebhookRepository, codes CodeGenerator, notifier notify.Notifier, clk clock.Clock, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		repo:     repo,
		codes:    codes,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// HandlePaymentEvent finalizes the reservation matching a settled payment.
//
// The finalized flag is the idempotency gate: gateways deliver at least once,
// and every redelivery after the first must be a pure no-op. Stock is NOT
// touched here — the unit was taken when the reservation was created.
// A non-nil return means "retry me"; anything already settled returns nil.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, ev PaymentEvent) error {
	if ev.Kind != EventPaymentConfirmed && ev.Kind != EventPaymentReceived {
		return nil
	}
	if ev.CorrelationToken == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	var confirmed *domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resv, err := s.repo.FindByCorrelationTokenForUpdate(txCtx, ev.CorrelationToken)
		if err != nil {
			return err
		}
		if resv == nil {
			// Stale event or another environment; acknowledging is correct.
			s.logger.Info("payment event for unknown correlation token",
				zap.String("correlation_token", ev.CorrelationToken),
				zap.String("gateway_transaction_id", ev.TransactionID),
			)
			return nil
		}
		if resv.Finalized {
			s.logger.Info("payment event replay ignored",
				zap.String("reservation_id", resv.ID),
				zap.String("correlation_token", ev.CorrelationToken),
			)
			return nil
		}
		if resv.Status != domain.ReservationStatusPending {
			// Settled money for a reservation the reclaimer (or a cancel)
			// already moved on. Surfaced for manual reconciliation; neither
			// re-activating nor dropping silently is safe to automate.
			s.logger.Error("late payment for non-pending reservation",
				zap.String("reservation_id", resv.ID),
				zap.String("offer_id", resv.OfferID),
				zap.String("status", string(resv.Status)),
				zap.String("correlation_token", ev.CorrelationToken),
				zap.String("gateway_transaction_id", ev.TransactionID),
			)
			return nil
		}

		code, err := s.generateCode(txCtx, resv.ID, ev.TransactionID, now)
		if err != nil {
			return err
		}
		if code == "" {
			// Lost a finalize race inside the window between read and write.
			return nil
		}

		resv.Status = domain.ReservationStatusConfirmed
		resv.Finalized = true
		resv.VoucherCode = &code
		resv.ConfirmedAt = &now
		confirmed = resv
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed == nil {
		return nil
	}

	s.notifyConfirmed(ctx, *confirmed)
	return nil
}

// generateCode assigns a fresh voucher code as part of the finalize update,
// retrying once if the code collides with an existing one. Returns "" when
// the reservation turned out to be finalized already.
func (s *WebhookService) generateCode(ctx context.Context, reservationID, gatewayTxID string, now time.Time) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("generate voucher code: %w", err)
		}
		err = s.repo.MarkConfirmed(ctx, reservationID, code, gatewayTxID, now)
		switch err {
		case nil:
			return code, nil
		case domain.ErrVoucherCodeTaken:
			continue
		case domain.ErrAlreadyFinalized:
			return "", nil
		default:
			return "", err
		}
	}
	return "", domain.ErrVoucherCodeTaken
}

func (s *WebhookService) notifyConfirmed(ctx context.Context, resv domain.Reservation) {
	title := ""
	if offer, err := s.repo.GetOffer(ctx, resv.OfferID); err == nil {
		title = offer.Title
	}

	code := ""
	if resv.VoucherCode != nil {
		code = *resv.VoucherCode
	}

	if err := s.notifier.Notify(ctx, resv.ConsumerID, "Voucher confirmed!", fmt.Sprintf("%s — code: %s", title, code)); err != nil {
		s.logger.Warn("consumer notification failed",
			zap.String("reservation_id", resv.ID),
			zap.Error(err),
		)
	}
	if err := s.notifier.Notify(ctx, resv.BusinessID, "New reservation confirmed!", fmt.Sprintf("A consumer reserved: %s", title)); err != nil {
		s.logger.Warn("business notification failed",
			zap.String("reservation_id", resv.ID),
			zap.Error(err),
		)
	}
}
