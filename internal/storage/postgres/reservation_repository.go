package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkacci/FlashDeal/internal/domain"
)

const reservationColumns = `id, offer_id, business_id, consumer_id, amount_cents, correlation_token,
gateway_transaction_id, finalized, stock_held, status, voucher_code, cancel_reason,
created_at, confirmed_at, cancelled_at, used_at`

// ReservationRepository owns the reservation rows and the stock mutations on
// their offers. Stock is never touched outside a transaction that also writes
// the reservation row.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 FOR UPDATE`
	return r.scanOffer(r.queryRow(ctx, query, offerID))
}

func (r *ReservationRepository) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return r.scanOffer(r.queryRow(ctx, query, offerID))
}

// DecrementStock takes one unit if any remains. The guard in the WHERE clause
// makes check-and-decrement a single statement, so the transaction fails
// closed instead of overselling.
func (r *ReservationRepository) DecrementStock(ctx context.Context, offerID string) error {
	const stmt = `
UPDATE offers SET available_units = available_units - 1, updated_at = NOW()
WHERE id = $1 AND available_units > 0`

	tag, err := r.exec(ctx, stmt, offerID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferExhausted
	}
	return nil
}

// IncrementStock returns one unit to the pool, capped at total_units.
func (r *ReservationRepository) IncrementStock(ctx context.Context, offerID string) error {
	const stmt = `
UPDATE offers SET available_units = LEAST(available_units + 1, total_units), updated_at = NOW()
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, offerID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, resv domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, offer_id, business_id, consumer_id, amount_cents, correlation_token,
	gateway_transaction_id, finalized, stock_held, status, voucher_code, cancel_reason,
	created_at, confirmed_at, cancelled_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.exec(ctx, stmt,
		resv.ID,
		resv.OfferID,
		resv.BusinessID,
		resv.ConsumerID,
		resv.AmountCents,
		resv.CorrelationToken,
		resv.GatewayTransactionID,
		resv.Finalized,
		resv.StockHeld,
		resv.Status,
		resv.VoucherCode,
		resv.CancelReason,
		resv.CreatedAt,
		resv.ConfirmedAt,
		resv.CancelledAt,
		resv.UsedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// DeleteReservation removes a reservation outright. Only the gateway-failure
// compensation path uses it.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, reservationID string) error {
	const stmt = `DELETE FROM reservations WHERE id = $1`

	tag, err := r.exec(ctx, stmt, reservationID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	resv, err := r.scanReservation(r.queryRow(ctx, query, reservationID))
	if err != nil {
		return domain.Reservation{}, err
	}
	return resv, nil
}

func (r *ReservationRepository) FindByCorrelationTokenForUpdate(ctx context.Context, token string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE correlation_token = $1 FOR UPDATE`

	resv, err := r.scanReservation(r.queryRow(ctx, query, token))
	if err != nil {
		if err == domain.ErrReservationNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resv, nil
}

func (r *ReservationRepository) FindByVoucherCodeForUpdate(ctx context.Context, code string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE voucher_code = $1 FOR UPDATE`

	resv, err := r.scanReservation(r.queryRow(ctx, query, code))
	if err != nil {
		if err == domain.ErrReservationNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resv, nil
}

// MarkConfirmed performs the one-time pending->confirmed transition. The
// finalized guard in the WHERE clause means a racing duplicate delivery
// cannot double-write even if it slipped past the read.
func (r *ReservationRepository) MarkConfirmed(ctx context.Context, reservationID, voucherCode, gatewayTxID string, now time.Time) error {
	const stmt = `
UPDATE reservations
SET status = 'confirmed', finalized = TRUE, voucher_code = $2,
	gateway_transaction_id = CASE WHEN $3 <> '' THEN $3 ELSE gateway_transaction_id END,
	confirmed_at = $4
WHERE id = $1 AND finalized = FALSE AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, reservationID, voucherCode, gatewayTxID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVoucherCodeTaken
		}
		return fmt.Errorf("confirm reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyFinalized
	}
	return nil
}

func (r *ReservationRepository) MarkCancelled(ctx context.Context, reservationID, reason string, now time.Time) error {
	const stmt = `
UPDATE reservations
SET status = 'cancelled', stock_held = FALSE, cancel_reason = $2, cancelled_at = $3
WHERE id = $1 AND status = 'confirmed'`

	tag, err := r.exec(ctx, stmt, reservationID, reason, now)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotConfirmed
	}
	return nil
}

func (r *ReservationRepository) MarkUsed(ctx context.Context, reservationID string, now time.Time) error {
	const stmt = `
UPDATE reservations SET status = 'used', stock_held = FALSE, used_at = $2
WHERE id = $1 AND status = 'confirmed'`

	tag, err := r.exec(ctx, stmt, reservationID, now)
	if err != nil {
		return fmt.Errorf("redeem reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotConfirmed
	}
	return nil
}

// MarkExpired transitions a still-pending reservation to expired. Returns
// false when another writer got there first.
func (r *ReservationRepository) MarkExpired(ctx context.Context, reservationID string) (bool, error) {
	const stmt = `
UPDATE reservations SET status = 'expired', stock_held = FALSE WHERE id = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, reservationID)
	if err != nil {
		return false, fmt.Errorf("expire reservation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReservationRepository) SetGatewayTransaction(ctx context.Context, reservationID, gatewayTxID string) error {
	const stmt = `UPDATE reservations SET gateway_transaction_id = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, reservationID, gatewayTxID)
	if err != nil {
		return fmt.Errorf("set gateway transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// ListExpiredPending returns pending reservations created before the cutoff,
// oldest first, bounded by limit.
func (r *ReservationRepository) ListExpiredPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
LIMIT $2`

	rows, err := r.query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	defer rows.Close()
	return r.collectReservations(rows)
}

// ListConfirmedEndingBetween returns confirmed reservations whose offer
// validity ends inside (from, to].
func (r *ReservationRepository) ListConfirmedEndingBetween(ctx context.Context, from, to time.Time) ([]domain.ExpiringVoucher, error) {
	query := `SELECT ` + prefixColumns("r", reservationColumns) + `, o.title, o.ends_at
FROM reservations r
JOIN offers o ON o.id = r.offer_id
WHERE r.status = 'confirmed' AND o.ends_at > $1 AND o.ends_at <= $2`

	rows, err := r.query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expiring vouchers: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpiringVoucher
	for rows.Next() {
		var v domain.ExpiringVoucher
		if err := scanReservationFields(rows, &v.Reservation, &v.OfferTitle, &v.OfferEndsAt); err != nil {
			return nil, fmt.Errorf("scan expiring voucher: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expiring vouchers: %w", err)
	}
	return out, nil
}

func (r *ReservationRepository) collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for rows.Next() {
		var resv domain.Reservation
		if err := scanReservationFields(rows, &resv); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, resv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect reservations: %w", err)
	}
	return out, nil
}

func (r *ReservationRepository) scanReservation(row pgx.Row) (domain.Reservation, error) {
	var resv domain.Reservation
	err := scanReservationFields(row, &resv)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return resv, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func scanReservationFields(row pgx.Row, resv *domain.Reservation, extra ...any) error {
	var status string
	dest := []any{
		&resv.ID, &resv.OfferID, &resv.BusinessID, &resv.ConsumerID, &resv.AmountCents, &resv.CorrelationToken,
		&resv.GatewayTransactionID, &resv.Finalized, &resv.StockHeld, &status, &resv.VoucherCode, &resv.CancelReason,
		&resv.CreatedAt, &resv.ConfirmedAt, &resv.CancelledAt, &resv.UsedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	resv.Status = domain.ReservationStatus(status)
	return nil
}

func (r *ReservationRepository) scanOffer(row pgx.Row) (domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID, &o.BusinessID, &o.Title, &o.OriginalPriceCents, &o.DiscountPriceCents, &o.DiscountPercent,
		&o.TotalUnits, &o.AvailableUnits, &o.StartsAt, &o.EndsAt, &o.Active, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Offer{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
