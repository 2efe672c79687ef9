package http

import (
	"encoding/json"
	"net/http"

	"github.com/pkacci/FlashDeal/internal/domain"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeUnauthorized        = "unauthorized"
	codePermissionDenied    = "permission_denied"
	codeOfferNotFound       = "offer_not_found"
	codeOfferInactive       = "offer_inactive"
	codeOfferExpired        = "offer_expired"
	codeOfferExhausted      = "offer_exhausted"
	codeTitleRequired       = "offer_title_required"
	codeInvalidPrice        = "invalid_price"
	codeInvalidUnits        = "invalid_units"
	codeInvalidWindow       = "invalid_validity_window"
	codeReservationNotFound = "reservation_not_found"
	codeVoucherNotFound     = "voucher_not_found"
	codeNotConfirmed        = "reservation_not_confirmed"
	codeAlreadyRedeemed     = "voucher_already_redeemed"
	codeCancellationCutoff  = "cancellation_window_closed"
	codeMissingReference    = "missing_external_reference"
	codePaymentGateway      = "payment_gateway_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps a service error to its HTTP shape. Precondition and
// permission failures are terminal for the caller; only gateway/store
// failures surface as 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrOfferTitleRequired:
		writeError(w, http.StatusBadRequest, codeTitleRequired, err.Error())
	case domain.ErrInvalidPrice:
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case domain.ErrInvalidUnits:
		writeError(w, http.StatusBadRequest, codeInvalidUnits, err.Error())
	case domain.ErrInvalidWindow:
		writeError(w, http.StatusBadRequest, codeInvalidWindow, err.Error())
	case domain.ErrOfferNotFound:
		writeError(w, http.StatusNotFound, codeOfferNotFound, err.Error())
	case domain.ErrReservationNotFound:
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case domain.ErrVoucherNotFound:
		writeError(w, http.StatusNotFound, codeVoucherNotFound, err.Error())
	case domain.ErrOfferInactive:
		writeError(w, http.StatusConflict, codeOfferInactive, err.Error())
	case domain.ErrOfferExpired:
		writeError(w, http.StatusConflict, codeOfferExpired, err.Error())
	case domain.ErrOfferExhausted:
		writeError(w, http.StatusConflict, codeOfferExhausted, err.Error())
	case domain.ErrNotConfirmed:
		writeError(w, http.StatusConflict, codeNotConfirmed, err.Error())
	case domain.ErrAlreadyRedeemed:
		writeError(w, http.StatusConflict, codeAlreadyRedeemed, err.Error())
	case domain.ErrCancellationCutoff:
		writeError(w, http.StatusConflict, codeCancellationCutoff, err.Error())
	case domain.ErrPermissionDenied:
		writeError(w, http.StatusForbidden, codePermissionDenied, err.Error())
	case domain.ErrPaymentGateway:
		writeError(w, http.StatusBadGateway, codePaymentGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
