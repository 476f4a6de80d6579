package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CouponUseCase = (*couponUC)(nil)

// CouponQuote is a non-binding price preview. Nothing is redeemed.
type CouponQuote struct {
	Coupon         *model.Coupon
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

type CouponUseCase interface {
	// Validate quotes a coupon against an amount and plan. Unlike checkout,
	// an inapplicable coupon here returns the specific rule error so the
	// caller can say why.
	Validate(ctx context.Context, code string, amount decimal.Decimal, planID string) (*CouponQuote, error)
	// Apply consumes one redemption of the coupon. The guarded repository
	// update enforces the usage limit, so losing a race surfaces as
	// ErrCouponUsageLimit rather than over-redeeming.
	Apply(ctx context.Context, code string) (*model.Coupon, error)
	Create(ctx context.Context, actor *model.User, coupon *model.Coupon) error
	Update(ctx context.Context, actor *model.User, coupon *model.Coupon) error
	Deactivate(ctx context.Context, actor *model.User, id string) error
	List(ctx context.Context) ([]*model.Coupon, error)
}

type couponUC struct {
	coupons repository.CouponRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewCouponUseCase(coupons repository.CouponRepository, tm repository.TransactionManager, logger *zerolog.Logger) *couponUC {
	return &couponUC{coupons: coupons, tm: tm, log: logger}
}

func (u *couponUC) Validate(ctx context.Context, code string, amount decimal.Decimal, planID string) (*CouponQuote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	coupon, err := u.coupons.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	discount, err := model.ComputeDiscount(coupon, amount, time.Now(), planID)
	if err != nil {
		return nil, err
	}
	return &CouponQuote{
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalAmount:    decimal.Max(decimal.Zero, amount.Sub(discount)).Round(2),
	}, nil
}

func (u *couponUC) Apply(ctx context.Context, code string) (*model.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := u.coupons.RedeemOnce(ctx, repository.NoTX, code); err != nil {
		return nil, err
	}
	u.log.Info().Str("code", code).Msg("coupon applied")
	return u.coupons.FindByCode(ctx, repository.NoTX, code)
}

func (u *couponUC) Create(ctx context.Context, actor *model.User, coupon *model.Coupon) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if coupon == nil || coupon.Code == "" || !coupon.DiscountType.Valid() {
		return domain.ErrInvalidArgument
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))

	if existing, err := u.coupons.FindByCode(ctx, repository.NoTX, coupon.Code); err == nil && existing != nil {
		return domain.ErrAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := u.coupons.Save(ctx, repository.NoTX, coupon); err != nil {
		return err
	}
	u.log.Info().Str("code", coupon.Code).Msg("coupon created")
	return nil
}

func (u *couponUC) Update(ctx context.Context, actor *model.User, coupon *model.Coupon) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if coupon == nil || coupon.ID == "" {
		return domain.ErrInvalidArgument
	}
	if _, err := u.coupons.FindByID(ctx, repository.NoTX, coupon.ID); err != nil {
		return err
	}
	coupon.UpdatedAt = time.Now()
	return u.coupons.Save(ctx, repository.NoTX, coupon)
}

func (u *couponUC) Deactivate(ctx context.Context, actor *model.User, id string) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := u.coupons.Deactivate(ctx, repository.NoTX, id); err != nil {
		return err
	}
	u.log.Info().Str("coupon_id", id).Msg("coupon deactivated")
	return nil
}

func (u *couponUC) List(ctx context.Context) ([]*model.Coupon, error) {
	return u.coupons.ListAll(ctx, repository.NoTX)
}
