package domain

import "time"

// Offer is a business's time-boxed, quantity-limited discounted listing.
// AvailableUnits is the authoritative stock count; it is only ever mutated
// inside a transaction that also writes the associated reservation row.
type Offer struct {
	ID                 string
	BusinessID         string
	Title              string
	OriginalPriceCents int64
	DiscountPriceCents int64
	DiscountPercent    int
	TotalUnits         int
	AvailableUnits     int
	StartsAt           time.Time
	EndsAt             time.Time
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
