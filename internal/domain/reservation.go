package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusUsed      ReservationStatus = "used"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation is a consumer's claim on one unit of an offer.
//
// StockHeld is true iff the reservation currently holds a decremented unit
// (status pending or confirmed). Finalized flips false->true exactly once, on
// the pending->confirmed transition, and guards against webhook redelivery.
type Reservation struct {
	ID                   string
	OfferID              string
	BusinessID           string
	ConsumerID           string
	AmountCents          int64
	CorrelationToken     string
	GatewayTransactionID string
	Finalized            bool
	StockHeld            bool
	Status               ReservationStatus
	VoucherCode          *string
	CancelReason         string
	CreatedAt            time.Time
	ConfirmedAt          *time.Time
	CancelledAt          *time.Time
	UsedAt               *time.Time
}

// HoldsStock reports whether the status implies a held unit of stock.
func (s ReservationStatus) HoldsStock() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// ExpiringVoucher pairs a confirmed reservation with the offer fields the
// voucher expiry reminder needs.
type ExpiringVoucher struct {
	Reservation Reservation
	OfferTitle  string
	OfferEndsAt time.Time
}
