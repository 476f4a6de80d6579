package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (d DiscountType) Valid() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixed
}

// Coupon is a discount code. Codes are stored uppercased and are globally
// unique. UsedCount is mutated only through CouponRepository.RedeemOnce so the
// usage limit holds under concurrent redemption.
type Coupon struct {
	ID          string
	Code        string
	Name        string
	Description string

	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	// MinAmount is the minimum purchase amount for the coupon to apply.
	MinAmount decimal.Decimal
	// MaxDiscount caps percentage discounts; nil means uncapped. Ignored for
	// fixed discounts.
	MaxDiscount *decimal.Decimal

	ValidFrom  time.Time
	ValidUntil time.Time

	// UsageLimit nil means unlimited.
	UsageLimit *int
	UsedCount  int

	IsActive bool
	// ApplicablePlanIDs empty means the coupon applies to every plan.
	ApplicablePlanIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCoupon validates and constructs a coupon. The code is uppercased.
func NewCoupon(id, code, name string, dt DiscountType, value decimal.Decimal, validFrom, validUntil time.Time) (*Coupon, error) {
	if id == "" || code == "" || name == "" || value.IsNegative() || validUntil.Before(validFrom) {
		return nil, domain.ErrInvalidArgument
	}
	if !dt.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Coupon{
		ID:            id,
		Code:          strings.ToUpper(code),
		Name:          name,
		DiscountType:  dt,
		DiscountValue: value,
		MinAmount:     decimal.Zero,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ComputeDiscount computes the discount a coupon yields for a billing amount.
// Pure: it never mutates the coupon; redemption accounting is the caller's job.
//
// Validation short-circuits in a fixed order and each failed rule returns its
// own sentinel. The validity window is inclusive at both bounds: a coupon with
// ValidUntil equal to now is still applicable.
func ComputeDiscount(c *Coupon, amount decimal.Decimal, now time.Time, planID string) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, domain.ErrInvalidArgument
	}
	if !c.IsActive {
		return decimal.Zero, domain.ErrCouponInactive
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return decimal.Zero, domain.ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return decimal.Zero, domain.ErrCouponUsageLimit
	}
	if len(c.ApplicablePlanIDs) > 0 && planID != "" && !containsString(c.ApplicablePlanIDs, planID) {
		return decimal.Zero, domain.ErrCouponPlanMismatch
	}
	if amount.LessThan(c.MinAmount) {
		return decimal.Zero, domain.ErrCouponMinAmount
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	default:
		discount = c.DiscountValue
	}

	// The final amount never goes negative.
	if discount.GreaterThan(amount) {
		discount = amount
	}
	return discount.Round(2), nil
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
