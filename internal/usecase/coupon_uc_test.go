//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
	"saas-subscription-billing/internal/usecase"
)

func newCouponUC() (*MockCouponRepo, usecase.CouponUseCase) {
	repo := NewMockCouponRepo()
	uc := usecase.NewCouponUseCase(repo, NewMockTxManager(), newTestLogger())
	return repo, uc
}

func seedCoupon(t *testing.T, repo *MockCouponRepo) *model.Coupon {
	t.Helper()
	now := time.Now()
	c, err := model.NewCoupon("c1", "SAVE20", "Save 20",
		model.DiscountTypePercentage, decimal.NewFromInt(20), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("build coupon: %v", err)
	}
	if err := repo.Save(context.Background(), repository.NoTX, c); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return c
}

func TestCouponValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("quotes discount and final amount", func(t *testing.T) {
		repo, uc := newCouponUC()
		seedCoupon(t, repo)

		quote, err := uc.Validate(ctx, "save20", decimal.NewFromInt(100), "pro")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !quote.DiscountAmount.Equal(decimal.NewFromInt(20)) {
			t.Errorf("expected discount 20, got %s", quote.DiscountAmount)
		}
		if !quote.FinalAmount.Equal(decimal.NewFromInt(80)) {
			t.Errorf("expected final 80, got %s", quote.FinalAmount)
		}
		// Quoting must not consume the coupon.
		stored, _ := repo.FindByCode(ctx, repository.NoTX, "SAVE20")
		if stored.UsedCount != 0 {
			t.Errorf("validate consumed the coupon: used_count=%d", stored.UsedCount)
		}
	})

	t.Run("surfaces the specific rule failure", func(t *testing.T) {
		repo, uc := newCouponUC()
		c := seedCoupon(t, repo)
		c.ValidUntil = time.Now().Add(-time.Minute)
		_ = repo.Save(ctx, repository.NoTX, c)

		_, err := uc.Validate(ctx, "SAVE20", decimal.NewFromInt(100), "pro")
		if !errors.Is(err, domain.ErrCouponExpired) {
			t.Errorf("expected ErrCouponExpired, got %v", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		_, uc := newCouponUC()
		if _, err := uc.Validate(ctx, "NOPE", decimal.NewFromInt(100), "pro"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("blank code", func(t *testing.T) {
		_, uc := newCouponUC()
		if _, err := uc.Validate(ctx, "   ", decimal.NewFromInt(100), "pro"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestCouponApply(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes one redemption", func(t *testing.T) {
		repo, uc := newCouponUC()
		seedCoupon(t, repo)

		applied, err := uc.Apply(ctx, "save20")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if applied.UsedCount != 1 {
			t.Errorf("expected used_count 1, got %d", applied.UsedCount)
		}
	})

	t.Run("exhausted coupon", func(t *testing.T) {
		repo, uc := newCouponUC()
		c := seedCoupon(t, repo)
		limit := 1
		c.UsageLimit = &limit
		c.UsedCount = 1
		_ = repo.Save(ctx, repository.NoTX, c)

		if _, err := uc.Apply(ctx, "SAVE20"); !errors.Is(err, domain.ErrCouponUsageLimit) {
			t.Errorf("expected ErrCouponUsageLimit, got %v", err)
		}
	})

	t.Run("deactivated coupon", func(t *testing.T) {
		repo, uc := newCouponUC()
		seedCoupon(t, repo)
		_ = repo.Deactivate(ctx, repository.NoTX, "c1")

		if _, err := uc.Apply(ctx, "SAVE20"); !errors.Is(err, domain.ErrCouponInactive) {
			t.Errorf("expected ErrCouponInactive, got %v", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		_, uc := newCouponUC()
		if _, err := uc.Apply(ctx, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("blank code", func(t *testing.T) {
		_, uc := newCouponUC()
		if _, err := uc.Apply(ctx, "   "); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestCouponCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	newCoupon := func(code string) *model.Coupon {
		c, _ := model.NewCoupon("c2", code, "New",
			model.DiscountTypeFixed, decimal.NewFromInt(5), now, now.Add(time.Hour))
		return c
	}

	t.Run("admin creates a coupon", func(t *testing.T) {
		repo, uc := newCouponUC()
		if err := uc.Create(ctx, admin, newCoupon("WELCOME5")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := repo.FindByCode(ctx, repository.NoTX, "WELCOME5"); err != nil {
			t.Errorf("expected coupon persisted: %v", err)
		}
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		_, uc := newCouponUC()
		if err := uc.Create(ctx, member, newCoupon("WELCOME5")); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		repo, uc := newCouponUC()
		seedCoupon(t, repo)
		if err := uc.Create(ctx, admin, newCoupon("save20")); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestCouponDeactivate(t *testing.T) {
	ctx := context.Background()
	repo, uc := newCouponUC()
	seedCoupon(t, repo)

	if err := uc.Deactivate(ctx, admin, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.FindByID(ctx, repository.NoTX, "c1")
	if stored.IsActive {
		t.Error("expected coupon inactive")
	}

	if err := uc.Deactivate(ctx, member, "c1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
