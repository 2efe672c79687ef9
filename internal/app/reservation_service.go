package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
	"github.com/pkacci/FlashDeal/internal/payments"
	"go.uber.org/zap"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error)
	DecrementStock(ctx context.Context, offerID string) error
	IncrementStock(ctx context.Context, offerID string) error
	CreateReservation(ctx context.Context, resv domain.Reservation) error
	DeleteReservation(ctx context.Context, reservationID string) error
	SetGatewayTransaction(ctx context.Context, reservationID, gatewayTxID string) error
}

type PaymentGateway interface {
	CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.Charge, error)
}

type ReservationService struct {
	repo          ReservationRepository
	gateway       PaymentGateway
	clock         clock.Clock
	logger        *zap.Logger
	paymentWindow time.Duration
}

const defaultPaymentWindow = 15 * time.Minute

func NewReservationService(repo ReservationRepository, gateway PaymentGateway, clk clock.Clock, logger *zap.Logger, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:          repo,
		gateway:       gateway,
		clock:         clk,
		logger:        logger,
		paymentWindow: defaultPaymentWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithPaymentWindow overrides how long a pending reservation may wait for payment.
func WithPaymentWindow(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.paymentWindow = d
		}
	}
}

type CreateReservationResult struct {
	Reservation domain.Reservation
	QRCode      string
	CopyPaste   string
	ExpiresIn   time.Duration
}

// CreateReservation admits a consumer against the offer's stock and asks the
// payment gateway for a payable reference.
//
// The availability check and the decrement happen inside one transaction that
// also inserts the reservation row; two concurrent callers can therefore never
// both take the last unit. The gateway call stays outside the transaction —
// an unbounded network call must not hold row locks — and on gateway failure
// the admission is compensated: stock goes back and the row is deleted.
func (s *ReservationService) CreateReservation(ctx context.Context, consumerID, offerID string) (CreateReservationResult, error) {
	if consumerID == "" || offerID == "" {
		return CreateReservationResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var resv domain.Reservation
	var title string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err := s.repo.GetOfferForUpdate(txCtx, offerID)
		if err != nil {
			return err
		}
		if !offer.Active {
			return domain.ErrOfferInactive
		}
		if !offer.EndsAt.After(now) {
			return domain.ErrOfferExpired
		}
		if offer.AvailableUnits <= 0 {
			return domain.ErrOfferExhausted
		}

		if err := s.repo.DecrementStock(txCtx, offerID); err != nil {
			return err
		}

		// Price is captured from the offer snapshot here and never re-read,
		// so a concurrent offer edit cannot change what the consumer owes.
		resv = domain.Reservation{
			ID:               uuid.NewString(),
			OfferID:          offer.ID,
			BusinessID:       offer.BusinessID,
			ConsumerID:       consumerID,
			AmountCents:      offer.DiscountPriceCents,
			CorrelationToken: uuid.NewString(),
			Status:           domain.ReservationStatusPending,
			StockHeld:        true,
			CreatedAt:        now,
		}
		title = offer.Title
		return s.repo.CreateReservation(txCtx, resv)
	})
	if err != nil {
		return CreateReservationResult{}, err
	}

	charge, err := s.gateway.CreateCharge(ctx, payments.ChargeRequest{
		AmountCents:      resv.AmountCents,
		Description:      title,
		CorrelationToken: resv.CorrelationToken,
		ExpiresAt:        now.Add(s.paymentWindow),
	})
	if err != nil {
		s.logger.Error("payment gateway call failed, rolling back reservation",
			zap.String("reservation_id", resv.ID),
			zap.String("offer_id", offerID),
			zap.Error(err),
		)
		s.compensate(ctx, resv)
		return CreateReservationResult{}, domain.ErrPaymentGateway
	}

	if err := s.repo.SetGatewayTransaction(ctx, resv.ID, charge.TransactionID); err != nil {
		// The charge exists and the webhook correlates by token, not by this
		// id, so a failed bookkeeping write is not worth failing the call.
		s.logger.Warn("failed to record gateway transaction id",
			zap.String("reservation_id", resv.ID),
			zap.Error(err),
		)
	} else {
		resv.GatewayTransactionID = charge.TransactionID
	}

	return CreateReservationResult{
		Reservation: resv,
		QRCode:      charge.QRCode,
		CopyPaste:   charge.CopyPaste,
		ExpiresIn:   s.paymentWindow,
	}, nil
}

// compensate undoes the admission transaction after a gateway failure. Each
// attempt works on its own fresh reservation id, so retries of the whole
// operation cannot double-compensate.
func (s *ReservationService) compensate(ctx context.Context, resv domain.Reservation) {
	// The client may have disconnected during the gateway call; the rollback
	// must run even after the request context is cancelled.
	ctx = context.WithoutCancel(ctx)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteReservation(txCtx, resv.ID); err != nil {
			return err
		}
		return s.repo.IncrementStock(txCtx, resv.OfferID)
	})
	if err != nil {
		// Stock stays short by one until the reclaimer expires the orphaned
		// pending row; loud log so the leak is visible before that.
		s.logger.Error("compensating rollback failed",
			zap.String("reservation_id", resv.ID),
			zap.String("offer_id", resv.OfferID),
			zap.Error(err),
		)
	}
}
