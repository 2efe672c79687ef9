package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkacci/FlashDeal/internal/domain"
	"github.com/pkacci/FlashDeal/internal/payments"
)

// fakeStore backs every service interface in this package. WithTx serializes
// callers with a mutex the way the database serializes conflicting
// transactions, which is what makes the concurrency tests meaningful.
type fakeStore struct {
	mu           sync.Mutex
	offers       map[string]domain.Offer
	reservations map[string]domain.Reservation
}

func newFakeStore(offers []domain.Offer, reservations []domain.Reservation) *fakeStore {
	f := &fakeStore{
		offers:       make(map[string]domain.Offer),
		reservations: make(map[string]domain.Reservation),
	}
	for _, o := range offers {
		f.offers[o.ID] = o
	}
	for _, r := range reservations {
		f.reservations[r.ID] = r
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) GetOfferForUpdate(_ context.Context, offerID string) (domain.Offer, error) {
	offer, ok := f.offers[offerID]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return offer, nil
}

func (f *fakeStore) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	return f.GetOfferForUpdate(ctx, offerID)
}

func (f *fakeStore) DecrementStock(_ context.Context, offerID string) error {
	offer, ok := f.offers[offerID]
	if !ok || offer.AvailableUnits <= 0 {
		return domain.ErrOfferExhausted
	}
	offer.AvailableUnits--
	f.offers[offerID] = offer
	return nil
}

func (f *fakeStore) IncrementStock(_ context.Context, offerID string) error {
	offer, ok := f.offers[offerID]
	if !ok {
		return domain.ErrOfferNotFound
	}
	if offer.AvailableUnits < offer.TotalUnits {
		offer.AvailableUnits++
	}
	f.offers[offerID] = offer
	return nil
}

func (f *fakeStore) CreateReservation(_ context.Context, resv domain.Reservation) error {
	f.reservations[resv.ID] = resv
	return nil
}

func (f *fakeStore) DeleteReservation(_ context.Context, reservationID string) error {
	if _, ok := f.reservations[reservationID]; !ok {
		return domain.ErrReservationNotFound
	}
	delete(f.reservations, reservationID)
	return nil
}

func (f *fakeStore) SetGatewayTransaction(_ context.Context, reservationID, gatewayTxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	resv, ok := f.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	resv.GatewayTransactionID = gatewayTxID
	f.reservations[reservationID] = resv
	return nil
}

func (f *fakeStore) GetReservationForUpdate(_ context.Context, reservationID string) (domain.Reservation, error) {
	resv, ok := f.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return resv, nil
}

func (f *fakeStore) FindByCorrelationTokenForUpdate(_ context.Context, token string) (*domain.Reservation, error) {
	for id := range f.reservations {
		resv := f.reservations[id]
		if resv.CorrelationToken == token {
			return &resv, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindByVoucherCodeForUpdate(_ context.Context, code string) (*domain.Reservation, error) {
	for id := range f.reservations {
		resv := f.reservations[id]
		if resv.VoucherCode != nil && *resv.VoucherCode == code {
			return &resv, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkConfirmed(_ context.Context, reservationID, voucherCode, gatewayTxID string, now time.Time) error {
	for id := range f.reservations {
		other := f.reservations[id]
		if id != reservationID && other.VoucherCode != nil && *other.VoucherCode == voucherCode {
			return domain.ErrVoucherCodeTaken
		}
	}

	resv, ok := f.reservations[reservationID]
	if !ok || resv.Finalized || resv.Status != domain.ReservationStatusPending {
		return domain.ErrAlreadyFinalized
	}
	resv.Status = domain.ReservationStatusConfirmed
	resv.Finalized = true
	resv.VoucherCode = &voucherCode
	resv.ConfirmedAt = &now
	if gatewayTxID != "" {
		resv.GatewayTransactionID = gatewayTxID
	}
	f.reservations[reservationID] = resv
	return nil
}

func (f *fakeStore) MarkCancelled(_ context.Context, reservationID, reason string, now time.Time) error {
	resv, ok := f.reservations[reservationID]
	if !ok || resv.Status != domain.ReservationStatusConfirmed {
		return domain.ErrNotConfirmed
	}
	resv.Status = domain.ReservationStatusCancelled
	resv.StockHeld = false
	resv.CancelReason = reason
	resv.CancelledAt = &now
	f.reservations[reservationID] = resv
	return nil
}

func (f *fakeStore) MarkUsed(_ context.Context, reservationID string, now time.Time) error {
	resv, ok := f.reservations[reservationID]
	if !ok || resv.Status != domain.ReservationStatusConfirmed {
		return domain.ErrNotConfirmed
	}
	resv.Status = domain.ReservationStatusUsed
	resv.StockHeld = false
	resv.UsedAt = &now
	f.reservations[reservationID] = resv
	return nil
}

// reservationCount is a test helper; callers must not hold a transaction.
func (f *fakeStore) reservationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reservations)
}

func (f *fakeStore) offerUnits(offerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offers[offerID].AvailableUnits
}

func (f *fakeStore) reservation(id string) (domain.Reservation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resv, ok := f.reservations[id]
	return resv, ok
}

// fakeGateway records charge requests and can be told to fail.
type fakeGateway struct {
	mu    sync.Mutex
	calls []payments.ChargeRequest
	err   error
}

func (g *fakeGateway) CreateCharge(_ context.Context, req payments.ChargeRequest) (payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return payments.Charge{}, g.err
	}
	return payments.Charge{
		TransactionID: fmt.Sprintf("pix-%d", len(g.calls)),
		QRCode:        "qr-image",
		CopyPaste:     "qr-payload",
	}, nil
}

// seqCodes hands out deterministic voucher codes.
type seqCodes struct {
	n int
}

func (c *seqCodes) Generate() (string, error) {
	c.n++
	return fmt.Sprintf("FD-CODE%03d", c.n), nil
}

// notifyRecorder captures notifications and can be told to fail.
type notifyRecorder struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

type notification struct {
	UserID string
	Title  string
	Body   string
}

func (n *notifyRecorder) Notify(_ context.Context, userID, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, notification{UserID: userID, Title: title, Body: body})
	return nil
}

func (n *notifyRecorder) sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification{}, n.calls...)
}
