package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkacci/FlashDeal/internal/app"
	"github.com/pkacci/FlashDeal/internal/domain"
)

// OfferAuthoring is the minimal interface needed by the offer endpoints.
type OfferAuthoring interface {
	CreateOffer(ctx context.Context, in app.CreateOfferInput) (domain.Offer, error)
	ListOffers(ctx context.Context) ([]domain.Offer, error)
	EndOffer(ctx context.Context, offerID, businessID string) error
}

func HandleCreateOffer(svc OfferAuthoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := requireCaller(w, r)
		if businessID == "" {
			return
		}

		var req createOfferRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		offer, err := svc.CreateOffer(r.Context(), app.CreateOfferInput{
			BusinessID:         businessID,
			Title:              req.Title,
			OriginalPriceCents: req.OriginalPriceCents,
			DiscountPriceCents: req.DiscountPriceCents,
			TotalUnits:         req.TotalUnits,
			StartsAt:           req.StartsAt,
			EndsAt:             req.EndsAt,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toOfferResponse(offer))
	}
}

func HandleListOffers(svc OfferAuthoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offers, err := svc.ListOffers(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]offerResponse, 0, len(offers))
		for _, o := range offers {
			resp = append(resp, toOfferResponse(o))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func HandleEndOffer(svc OfferAuthoring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := requireCaller(w, r)
		if businessID == "" {
			return
		}

		offerID := chi.URLParam(r, "offerID")
		if err := svc.EndOffer(r.Context(), offerID, businessID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

type createOfferRequest struct {
	Title              string     `json:"title"`
	OriginalPriceCents int64      `json:"original_price_cents"`
	DiscountPriceCents int64      `json:"discount_price_cents"`
	TotalUnits         int        `json:"total_units"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             time.Time  `json:"ends_at"`
}

type offerResponse struct {
	ID                 string    `json:"id"`
	BusinessID         string    `json:"business_id"`
	Title              string    `json:"title"`
	OriginalPriceCents int64     `json:"original_price_cents"`
	DiscountPriceCents int64     `json:"discount_price_cents"`
	DiscountPercent    int       `json:"discount_percent"`
	TotalUnits         int       `json:"total_units"`
	AvailableUnits     int       `json:"available_units"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	Active             bool      `json:"active"`
}

func toOfferResponse(o domain.Offer) offerResponse {
	return offerResponse{
		ID:                 o.ID,
		BusinessID:         o.BusinessID,
		Title:              o.Title,
		OriginalPriceCents: o.OriginalPriceCents,
		DiscountPriceCents: o.DiscountPriceCents,
		DiscountPercent:    o.DiscountPercent,
		TotalUnits:         o.TotalUnits,
		AvailableUnits:     o.AvailableUnits,
		StartsAt:           o.StartsAt,
		EndsAt:             o.EndsAt,
		Active:             o.Active,
	}
}
