package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkacci/FlashDeal/internal/app"
)

// ReservationCreator is the minimal interface needed to create a reservation.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, consumerID, offerID string) (app.CreateReservationResult, error)
}

// HandleCreateReservation returns an HTTP handler for reserving one unit of
// an offer and obtaining the Pix payable reference.
func HandleCreateReservation(svc ReservationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		consumerID := requireCaller(w, r)
		if consumerID == "" {
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.OfferID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "offer_id is required")
			return
		}

		res, err := svc.CreateReservation(r.Context(), consumerID, req.OfferID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := createReservationResponse{
			ReservationID:    res.Reservation.ID,
			QRCode:           res.QRCode,
			CopyPaste:        res.CopyPaste,
			ExpiresInSeconds: int64(res.ExpiresIn.Seconds()),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createReservationRequest struct {
	OfferID string `json:"offer_id"`
}

type createReservationResponse struct {
	ReservationID    string `json:"reservation_id"`
	QRCode           string `json:"qr_code"`
	CopyPaste        string `json:"copy_paste"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// ReservationCanceller is the minimal interface needed to cancel a
// confirmed reservation.
type ReservationCanceller interface {
	CancelReservation(ctx context.Context, consumerID, reservationID, reason string) error
}

// HandleCancelReservation returns an HTTP handler for consumer-initiated
// cancellation. The body is optional; an absent body means no reason given.
func HandleCancelReservation(svc ReservationCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		consumerID := requireCaller(w, r)
		if consumerID == "" {
			return
		}

		reservationID := chi.URLParam(r, "reservationID")

		var req cancelReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.CancelReservation(r.Context(), consumerID, reservationID, req.Reason); err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}
