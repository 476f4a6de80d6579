package model

import (
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Plan is a purchasable pricing plan. Plans are soft-deleted (IsActive=false),
// never removed, because subscriptions keep referencing them.
type Plan struct {
	ID          string
	Name        string
	Description string

	PriceMonthly decimal.Decimal
	PriceYearly  decimal.Decimal

	Features []string
	// -1 means unlimited.
	MaxUsers     int
	MaxStorageGB int

	TrialDays int
	IsActive  bool

	// External processor price references; nil when the processor integration
	// is not configured for this plan.
	ProcessorPriceIDMonthly *string
	ProcessorPriceIDYearly  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, priceMonthly, priceYearly decimal.Decimal, trialDays int) (*Plan, error) {
	if id == "" || name == "" || priceMonthly.IsNegative() || priceYearly.IsNegative() || trialDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Plan{
		ID:           id,
		Name:         name,
		PriceMonthly: priceMonthly,
		PriceYearly:  priceYearly,
		MaxUsers:     -1,
		MaxStorageGB: -1,
		TrialDays:    trialDays,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// PriceFor returns the plan price for the given billing cycle.
func (p *Plan) PriceFor(cycle BillingCycle) decimal.Decimal {
	if cycle == BillingCycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// ProcessorPriceID returns the processor price reference for the cycle, or nil
// when the plan has no mapping (which forces the manual/local checkout path).
func (p *Plan) ProcessorPriceID(cycle BillingCycle) *string {
	if cycle == BillingCycleYearly {
		return p.ProcessorPriceIDYearly
	}
	return p.ProcessorPriceIDMonthly
}
