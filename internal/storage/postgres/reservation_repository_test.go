package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkacci/FlashDeal/internal/domain"
	"github.com/pkacci/FlashDeal/internal/testutil"
)

func TestReservationRepositoryStock(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	endsAt := time.Now().UTC().Add(6 * time.Hour)

	t.Run("decrement refuses the unit after stock runs out", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "two units", 2, endsAt)

		for i := 0; i < 2; i++ {
			if err := repo.DecrementStock(ctx, offerID); err != nil {
				t.Fatalf("decrement %d: %v", i, err)
			}
		}
		if err := repo.DecrementStock(ctx, offerID); !errors.Is(err, domain.ErrOfferExhausted) {
			t.Fatalf("err = %v, want ErrOfferExhausted", err)
		}
		if got := testutil.AvailableUnits(t, ctx, pool, offerID); got != 0 {
			t.Fatalf("available = %d, want 0", got)
		}
	})

	t.Run("increment never exceeds total units", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "full", 3, endsAt)

		if err := repo.IncrementStock(ctx, offerID); err != nil {
			t.Fatalf("IncrementStock: %v", err)
		}
		if got := testutil.AvailableUnits(t, ctx, pool, offerID); got != 3 {
			t.Fatalf("available = %d, want capped at 3", got)
		}
	})

	t.Run("increment on unknown offer", func(t *testing.T) {
		if err := repo.IncrementStock(ctx, uuid.NewString()); !errors.Is(err, domain.ErrOfferNotFound) {
			t.Fatalf("err = %v, want ErrOfferNotFound", err)
		}
	})
}

func TestReservationRepositoryLifecycle(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewReservationRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	endsAt := now.Add(6 * time.Hour)

	seedPending := func(t *testing.T, offerID, token string) string {
		t.Helper()
		return testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			OfferID:          offerID,
			BusinessID:       "biz-1",
			ConsumerID:       "consumer-1",
			AmountCents:      2500,
			CorrelationToken: token,
			StockHeld:        true,
			Status:           domain.ReservationStatusPending,
			CreatedAt:        now,
		})
	}

	t.Run("find by correlation token", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		id := seedPending(t, offerID, "token-find")

		resv, err := repo.FindByCorrelationTokenForUpdate(ctx, "token-find")
		if err != nil {
			t.Fatalf("FindByCorrelationTokenForUpdate: %v", err)
		}
		if resv == nil || resv.ID != id {
			t.Fatalf("resv = %+v, want id %s", resv, id)
		}

		missing, err := repo.FindByCorrelationTokenForUpdate(ctx, "token-unknown")
		if err != nil {
			t.Fatalf("unknown token: %v", err)
		}
		if missing != nil {
			t.Fatalf("resv = %+v, want nil for unknown token", missing)
		}
	})

	t.Run("confirm finalizes exactly once", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		id := seedPending(t, offerID, "token-confirm")

		if err := repo.MarkConfirmed(ctx, id, "FD-AAAA2345", "pix-1", now); err != nil {
			t.Fatalf("MarkConfirmed: %v", err)
		}

		resv, err := repo.GetReservationForUpdate(ctx, id)
		if err != nil {
			t.Fatalf("GetReservationForUpdate: %v", err)
		}
		if resv.Status != domain.ReservationStatusConfirmed || !resv.Finalized {
			t.Fatalf("resv = %+v", resv)
		}
		if resv.VoucherCode == nil || *resv.VoucherCode != "FD-AAAA2345" {
			t.Fatalf("voucher = %v", resv.VoucherCode)
		}
		if resv.GatewayTransactionID != "pix-1" {
			t.Fatalf("gateway tx = %q", resv.GatewayTransactionID)
		}

		if err := repo.MarkConfirmed(ctx, id, "FD-BBBB2345", "pix-1", now); !errors.Is(err, domain.ErrAlreadyFinalized) {
			t.Fatalf("second confirm err = %v, want ErrAlreadyFinalized", err)
		}
	})

	t.Run("voucher codes are unique", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		first := seedPending(t, offerID, "token-a")
		second := seedPending(t, offerID, "token-b")

		if err := repo.MarkConfirmed(ctx, first, "FD-SAME2345", "pix-1", now); err != nil {
			t.Fatalf("first confirm: %v", err)
		}
		if err := repo.MarkConfirmed(ctx, second, "FD-SAME2345", "pix-2", now); !errors.Is(err, domain.ErrVoucherCodeTaken) {
			t.Fatalf("duplicate code err = %v, want ErrVoucherCodeTaken", err)
		}
	})

	t.Run("cancel only from confirmed", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		id := seedPending(t, offerID, "token-cancel")

		if err := repo.MarkCancelled(ctx, id, "changed plans", now); !errors.Is(err, domain.ErrNotConfirmed) {
			t.Fatalf("pending cancel err = %v, want ErrNotConfirmed", err)
		}

		if err := repo.MarkConfirmed(ctx, id, "FD-CNCL2345", "pix-1", now); err != nil {
			t.Fatalf("MarkConfirmed: %v", err)
		}
		if err := repo.MarkCancelled(ctx, id, "changed plans", now); err != nil {
			t.Fatalf("MarkCancelled: %v", err)
		}

		resv, err := repo.GetReservationForUpdate(ctx, id)
		if err != nil {
			t.Fatalf("GetReservationForUpdate: %v", err)
		}
		if resv.Status != domain.ReservationStatusCancelled || resv.StockHeld {
			t.Fatalf("resv = %+v", resv)
		}
		if resv.CancelReason != "changed plans" {
			t.Fatalf("reason = %q", resv.CancelReason)
		}
	})

	t.Run("redeem releases the stock hold", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		id := seedPending(t, offerID, "token-redeem")

		if err := repo.MarkConfirmed(ctx, id, "FD-USED2345", "pix-1", now); err != nil {
			t.Fatalf("MarkConfirmed: %v", err)
		}
		if err := repo.MarkUsed(ctx, id, now); err != nil {
			t.Fatalf("MarkUsed: %v", err)
		}

		resv, err := repo.GetReservationForUpdate(ctx, id)
		if err != nil {
			t.Fatalf("GetReservationForUpdate: %v", err)
		}
		if resv.Status != domain.ReservationStatusUsed || resv.StockHeld {
			t.Fatalf("resv = %+v, want used without a stock hold", resv)
		}
		if resv.UsedAt == nil {
			t.Fatal("usedAt not set")
		}

		if err := repo.MarkUsed(ctx, id, now); !errors.Is(err, domain.ErrNotConfirmed) {
			t.Fatalf("second MarkUsed err = %v, want ErrNotConfirmed", err)
		}
	})

	t.Run("expire flips only pending rows", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)
		id := seedPending(t, offerID, "token-expire")

		expired, err := repo.MarkExpired(ctx, id)
		if err != nil {
			t.Fatalf("MarkExpired: %v", err)
		}
		if !expired {
			t.Fatal("pending row should expire")
		}

		again, err := repo.MarkExpired(ctx, id)
		if err != nil {
			t.Fatalf("second MarkExpired: %v", err)
		}
		if again {
			t.Fatal("expired row must not expire twice")
		}
	})

	t.Run("list expired pending respects cutoff and limit", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)

		for _, age := range []time.Duration{40 * time.Minute, 20 * time.Minute, time.Minute} {
			testutil.InsertReservation(t, ctx, pool, domain.Reservation{
				OfferID:          offerID,
				BusinessID:       "biz-1",
				ConsumerID:       "consumer-1",
				AmountCents:      2500,
				CorrelationToken: uuid.NewString(),
				StockHeld:        true,
				Status:           domain.ReservationStatusPending,
				CreatedAt:        now.Add(-age),
			})
		}

		stale, err := repo.ListExpiredPending(ctx, now.Add(-15*time.Minute), 500)
		if err != nil {
			t.Fatalf("ListExpiredPending: %v", err)
		}
		if len(stale) != 2 {
			t.Fatalf("stale = %d, want 2", len(stale))
		}
		if !stale[0].CreatedAt.Before(stale[1].CreatedAt) {
			t.Fatal("expected oldest first")
		}

		limited, err := repo.ListExpiredPending(ctx, now.Add(-15*time.Minute), 1)
		if err != nil {
			t.Fatalf("ListExpiredPending limited: %v", err)
		}
		if len(limited) != 1 {
			t.Fatalf("limited = %d, want 1", len(limited))
		}
	})

	t.Run("lists confirmed vouchers ending inside the window", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		soonID := testutil.InsertOffer(t, ctx, pool, "biz-1", "ending soon", 5, now.Add(30*time.Minute))
		laterID := testutil.InsertOffer(t, ctx, pool, "biz-1", "ending later", 5, now.Add(3*time.Hour))

		code := "FD-SOON2345"
		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			OfferID:          soonID,
			BusinessID:       "biz-1",
			ConsumerID:       "consumer-1",
			AmountCents:      2500,
			CorrelationToken: "token-soon",
			Finalized:        true,
			Status:           domain.ReservationStatusConfirmed,
			VoucherCode:      &code,
			CreatedAt:        now,
		})
		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			OfferID:          laterID,
			BusinessID:       "biz-1",
			ConsumerID:       "consumer-2",
			AmountCents:      2500,
			CorrelationToken: "token-later",
			Finalized:        true,
			Status:           domain.ReservationStatusConfirmed,
			CreatedAt:        now,
		})

		expiring, err := repo.ListConfirmedEndingBetween(ctx, now, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("ListConfirmedEndingBetween: %v", err)
		}
		if len(expiring) != 1 {
			t.Fatalf("expiring = %d, want 1", len(expiring))
		}
		if expiring[0].OfferTitle != "ending soon" || expiring[0].Reservation.ConsumerID != "consumer-1" {
			t.Fatalf("expiring = %+v", expiring[0])
		}
	})

	t.Run("transaction rolls back stock and row together", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		offerID := testutil.InsertOffer(t, ctx, pool, "biz-1", "burger", 5, endsAt)

		sentinel := errors.New("abort")
		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			if err := repo.DecrementStock(txCtx, offerID); err != nil {
				return err
			}
			return repo.CreateReservation(txCtx, domain.Reservation{
				ID:               uuid.NewString(),
				OfferID:          offerID,
				BusinessID:       "biz-1",
				ConsumerID:       "consumer-1",
				AmountCents:      2500,
				CorrelationToken: uuid.NewString(),
				StockHeld:        true,
				Status:           domain.ReservationStatusPending,
				CreatedAt:        now,
			})
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}
		if got := testutil.AvailableUnits(t, ctx, pool, offerID); got != 4 {
			t.Fatalf("available = %d, want 4 after committed tx", got)
		}

		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			if err := repo.DecrementStock(txCtx, offerID); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want sentinel", err)
		}
		if got := testutil.AvailableUnits(t, ctx, pool, offerID); got != 4 {
			t.Fatalf("available = %d, rollback must restore 4", got)
		}
	})
}
