package app

import (
	"context"
	"time"

	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
)

type RedemptionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindByVoucherCodeForUpdate(ctx context.Context, code string) (*domain.Reservation, error)
	MarkUsed(ctx context.Context, reservationID string, now time.Time) error
}

type RedemptionService struct {
	repo  RedemptionRepository
	clock clock.Clock
}

func NewRedemptionService(repo RedemptionRepository, clk clock.Clock) *RedemptionService {
	return &RedemptionService{repo: repo, clock: clk}
}

// RedeemVoucher marks a confirmed reservation as used when the consumer
// presents the code in person. Stock is untouched: a redeemed unit stays
// consumed. Only the business that owns the offer may redeem its vouchers.
func (s *RedemptionService) RedeemVoucher(ctx context.Context, businessID, code string) (domain.Reservation, error) {
	if businessID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if code == "" {
		return domain.Reservation{}, domain.ErrVoucherNotFound
	}

	now := s.clock.Now()
	var redeemed domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resv, err := s.repo.FindByVoucherCodeForUpdate(txCtx, code)
		if err != nil {
			return err
		}
		if resv == nil {
			return domain.ErrVoucherNotFound
		}
		if resv.BusinessID != businessID {
			return domain.ErrPermissionDenied
		}
		if resv.Status == domain.ReservationStatusUsed {
			return domain.ErrAlreadyRedeemed
		}
		if resv.Status != domain.ReservationStatusConfirmed {
			return domain.ErrNotConfirmed
		}

		if err := s.repo.MarkUsed(txCtx, resv.ID, now); err != nil {
			return err
		}

		resv.Status = domain.ReservationStatusUsed
		resv.UsedAt = &now
		redeemed = *resv
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return redeemed, nil
}
