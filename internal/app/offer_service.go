package app

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/domain"
)

type OfferRepository interface {
	CreateOffer(ctx context.Context, offer domain.Offer) error
	ListOffers(ctx context.Context) ([]domain.Offer, error)
	EndOffer(ctx context.Context, offerID, businessID string, now time.Time) error
}

// OfferService is the authoring surface for businesses. The reservation core
// only reads offers and mutates their stock; everything else about an offer
// is managed here.
type OfferService struct {
	repo  OfferRepository
	clock clock.Clock
}

func NewOfferService(repo OfferRepository, clk clock.Clock) *OfferService {
	return &OfferService{repo: repo, clock: clk}
}

type CreateOfferInput struct {
	BusinessID         string
	Title              string
	OriginalPriceCents int64
	DiscountPriceCents int64
	TotalUnits         int
	StartsAt           *time.Time
	EndsAt             time.Time
}

func (s *OfferService) CreateOffer(ctx context.Context, in CreateOfferInput) (domain.Offer, error) {
	if in.BusinessID == "" {
		return domain.Offer{}, domain.ErrInvalidID
	}
	if in.Title == "" {
		return domain.Offer{}, domain.ErrOfferTitleRequired
	}
	if in.OriginalPriceCents <= 0 || in.DiscountPriceCents <= 0 || in.DiscountPriceCents >= in.OriginalPriceCents {
		return domain.Offer{}, domain.ErrInvalidPrice
	}
	if in.TotalUnits <= 0 {
		return domain.Offer{}, domain.ErrInvalidUnits
	}

	now := s.clock.Now()
	startsAt := now
	if in.StartsAt != nil {
		startsAt = in.StartsAt.UTC()
	}
	if !in.EndsAt.After(startsAt) || !in.EndsAt.After(now) {
		return domain.Offer{}, domain.ErrInvalidWindow
	}

	offer := domain.Offer{
		ID:                 uuid.NewString(),
		BusinessID:         in.BusinessID,
		Title:              in.Title,
		OriginalPriceCents: in.OriginalPriceCents,
		DiscountPriceCents: in.DiscountPriceCents,
		DiscountPercent:    discountPercent(in.OriginalPriceCents, in.DiscountPriceCents),
		TotalUnits:         in.TotalUnits,
		AvailableUnits:     in.TotalUnits,
		StartsAt:           startsAt,
		EndsAt:             in.EndsAt.UTC(),
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (s *OfferService) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	return s.repo.ListOffers(ctx)
}

// EndOffer lets a business end its offer ahead of the validity window.
func (s *OfferService) EndOffer(ctx context.Context, offerID, businessID string) error {
	if offerID == "" || businessID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.EndOffer(ctx, offerID, businessID, s.clock.Now())
}

func discountPercent(original, discounted int64) int {
	return int(math.Round(100 - float64(discounted)*100/float64(original)))
}
