package repository

import (
	"context"

	"saas-subscription-billing/internal/domain/model"
)

type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Coupon, error)
	// FindByCode looks up by uppercased code.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Coupon, error)
	Deactivate(ctx context.Context, tx Tx, id string) error

	// RedeemOnce atomically increments used_count, failing with
	// domain.ErrCouponUsageLimit when the limit is exhausted. Single
	// increment-and-check statement, not read-then-write, so the limit holds
	// under concurrent redemption.
	RedeemOnce(ctx context.Context, tx Tx, code string) error
}
