//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)
	planRepo := NewPlanRepo(testPool)
	tm := NewTxManager(testPool)

	plan, err := model.NewPlan("pro", "Pro",
		decimal.RequireFromString("29.99"), decimal.RequireFromString("299.99"), 0)
	if err != nil {
		t.Fatalf("failed to build plan: %v", err)
	}

	setupPrerequisites := func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1", "u1@example.com")
		seedUser(t, "u2", "u2@example.com")
		if err := planRepo.Save(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("failed to save plan: %v", err)
		}
	}

	newSub := func(t *testing.T, userID string) *model.Subscription {
		t.Helper()
		s, err := model.NewSubscription(uuid.NewString(), userID, plan, model.BillingCycleMonthly, time.Now())
		if err != nil {
			t.Fatalf("failed to build subscription: %v", err)
		}
		return s
	}

	entitledCount := func(t *testing.T, userID string) int {
		t.Helper()
		var n int
		err := testPool.QueryRow(ctx,
			`SELECT COUNT(*) FROM subscriptions WHERE user_id=$1 AND status IN ('active','trialing');`,
			userID).Scan(&n)
		if err != nil {
			t.Fatalf("failed to count entitled rows: %v", err)
		}
		return n
	}

	t.Run("should save and find the entitled subscription", func(t *testing.T) {
		setupPrerequisites(t)
		sub := newSub(t, "u1")
		if err := repo.Save(ctx, repository.NoTX, sub); err != nil {
			t.Fatalf("failed to save subscription: %v", err)
		}

		found, err := repo.FindEntitledByUser(ctx, repository.NoTX, "u1")
		if err != nil {
			t.Fatalf("FindEntitledByUser failed: %v", err)
		}
		if found.ID != sub.ID {
			t.Fatal("did not find the entitled subscription")
		}

		if _, err := repo.FindEntitledByUser(ctx, repository.NoTX, "u2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for a user without a subscription, got %v", err)
		}
	})

	t.Run("should replace the entitled subscription inside one transaction", func(t *testing.T) {
		setupPrerequisites(t)
		old := newSub(t, "u1")
		if err := repo.Save(ctx, repository.NoTX, old); err != nil {
			t.Fatalf("failed to save old subscription: %v", err)
		}

		replacement := newSub(t, "u1")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.LockUser(ctx, tx, "u1"); err != nil {
				return err
			}
			if err := repo.CancelEntitledByUser(ctx, tx, "u1", time.Now()); err != nil {
				return err
			}
			return repo.Save(ctx, tx, replacement)
		})
		if err != nil {
			t.Fatalf("replacement transaction failed: %v", err)
		}

		if n := entitledCount(t, "u1"); n != 1 {
			t.Fatalf("expected exactly one entitled row, got %d", n)
		}
		canceled, err := repo.FindByID(ctx, repository.NoTX, old.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if canceled.Status != model.SubscriptionStatusCanceled || canceled.CanceledAt == nil {
			t.Errorf("expected old row canceled with canceled_at stamped, got %s / %v",
				canceled.Status, canceled.CanceledAt)
		}
	})

	t.Run("should keep one entitled row under concurrent checkouts", func(t *testing.T) {
		setupPrerequisites(t)

		const racers = 4
		var wg sync.WaitGroup
		errs := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sub := newSub(t, "u1")
				errs <- tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
					if err := repo.LockUser(ctx, tx, "u1"); err != nil {
						return err
					}
					if err := repo.CancelEntitledByUser(ctx, tx, "u1", time.Now()); err != nil {
						return err
					}
					return repo.Save(ctx, tx, sub)
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent checkout failed: %v", err)
			}
		}

		if n := entitledCount(t, "u1"); n != 1 {
			t.Errorf("expected exactly one entitled row after the race, got %d", n)
		}
	})

	t.Run("should reject the advisory lock outside a transaction", func(t *testing.T) {
		setupPrerequisites(t)
		if err := repo.LockUser(ctx, repository.NoTX, "u1"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})

	t.Run("should expire lapsed local subscriptions only", func(t *testing.T) {
		setupPrerequisites(t)
		past := time.Now().AddDate(0, -1, 0)

		lapsed := newSub(t, "u1")
		lapsed.EndDate = past
		if err := repo.Save(ctx, repository.NoTX, lapsed); err != nil {
			t.Fatalf("failed to save lapsed subscription: %v", err)
		}

		procID := "stripe_sub_1"
		hosted := newSub(t, "u2")
		hosted.EndDate = past
		hosted.ProcessorSubscriptionID = &procID
		if err := repo.Save(ctx, repository.NoTX, hosted); err != nil {
			t.Fatalf("failed to save hosted subscription: %v", err)
		}

		n, err := repo.ExpireLapsed(ctx, repository.NoTX, time.Now())
		if err != nil {
			t.Fatalf("ExpireLapsed failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 expired row, got %d", n)
		}

		swept, _ := repo.FindByID(ctx, repository.NoTX, lapsed.ID)
		if swept.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected local row expired, got %s", swept.Status)
		}
		kept, _ := repo.FindByID(ctx, repository.NoTX, hosted.ID)
		if kept.Status != model.SubscriptionStatusActive {
			t.Errorf("expected processor-backed row untouched, got %s", kept.Status)
		}
	})
}
