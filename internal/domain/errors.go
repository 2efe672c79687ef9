package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOfferInactive      = errors.New("offer not active")
	ErrOfferExpired       = errors.New("offer expired")
	ErrOfferExhausted     = errors.New("offer exhausted")
	ErrOfferTitleRequired = errors.New("offer title required")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidUnits       = errors.New("invalid units")
	ErrInvalidWindow      = errors.New("invalid validity window")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrVoucherNotFound     = errors.New("voucher not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotConfirmed        = errors.New("reservation not confirmed")
	ErrAlreadyRedeemed     = errors.New("voucher already redeemed")
	ErrCancellationCutoff  = errors.New("cancellation window closed")
	ErrAlreadyFinalized    = errors.New("reservation already finalized")
	ErrVoucherCodeTaken    = errors.New("voucher code already assigned")

	ErrPaymentGateway = errors.New("payment gateway failure")
)
