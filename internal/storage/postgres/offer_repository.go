package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkacci/FlashDeal/internal/domain"
)

const offerColumns = `id, business_id, title, original_price_cents, discount_price_cents, discount_percent,
total_units, available_units, starts_at, ends_at, active, created_at, updated_at`

type OfferRepository struct {
	pool *pgxpool.Pool
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OfferRepository) CreateOffer(ctx context.Context, offer domain.Offer) error {
	const stmt = `
INSERT INTO offers (id, business_id, title, original_price_cents, discount_price_cents, discount_percent,
	total_units, available_units, starts_at, ends_at, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.exec(ctx, stmt,
		offer.ID,
		offer.BusinessID,
		offer.Title,
		offer.OriginalPriceCents,
		offer.DiscountPriceCents,
		offer.DiscountPercent,
		offer.TotalUnits,
		offer.AvailableUnits,
		offer.StartsAt,
		offer.EndsAt,
		offer.Active,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return r.scanOffer(r.queryRow(ctx, query, offerID))
}

func (r *OfferRepository) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers ORDER BY created_at DESC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(
			&o.ID, &o.BusinessID, &o.Title, &o.OriginalPriceCents, &o.DiscountPriceCents, &o.DiscountPercent,
			&o.TotalUnits, &o.AvailableUnits, &o.StartsAt, &o.EndsAt, &o.Active, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return offers, nil
}

// EndOffer deactivates an offer owned by the given business.
func (r *OfferRepository) EndOffer(ctx context.Context, offerID, businessID string, now time.Time) error {
	const stmt = `UPDATE offers SET active = FALSE, updated_at = $3 WHERE id = $1 AND business_id = $2`

	tag, err := r.exec(ctx, stmt, offerID, businessID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("end offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Not-owned reads the same as not-found; the response must not
		// confirm that another business's offer id exists.
		return domain.ErrOfferNotFound
	}
	return nil
}

// SweepExpired deactivates every active offer whose validity window has
// passed, returning the number of offers touched.
func (r *OfferRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `UPDATE offers SET active = FALSE, updated_at = $1 WHERE active AND ends_at < $1`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired offers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OfferRepository) scanOffer(row pgx.Row) (domain.Offer, error) {
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

func (r *OfferRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OfferRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *OfferRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
