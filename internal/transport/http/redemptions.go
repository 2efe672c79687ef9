package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkacci/FlashDeal/internal/domain"
)

// VoucherRedeemer is the minimal interface needed to redeem a voucher.
type VoucherRedeemer interface {
	RedeemVoucher(ctx context.Context, businessID, code string) (domain.Reservation, error)
}

// HandleRedeemVoucher returns an HTTP handler for in-person redemption by the
// business owning the offer.
func HandleRedeemVoucher(svc VoucherRedeemer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := requireCaller(w, r)
		if businessID == "" {
			return
		}

		var req redeemVoucherRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		resv, err := svc.RedeemVoucher(r.Context(), businessID, req.Code)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := redeemVoucherResponse{
			ReservationID: resv.ID,
			OfferID:       resv.OfferID,
			Status:        string(resv.Status),
			AmountCents:   resv.AmountCents,
			UsedAt:        resv.UsedAt,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type redeemVoucherRequest struct {
	Code string `json:"code"`
}

type redeemVoucherResponse struct {
	ReservationID string     `json:"reservation_id"`
	OfferID       string     `json:"offer_id"`
	Status        string     `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	UsedAt        *time.Time `json:"used_at"`
}
