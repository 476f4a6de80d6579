package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// DashboardStats is the admin overview snapshot.
type DashboardStats struct {
	TotalUsers          int
	ActiveSubscriptions int
	RevenueWeek         decimal.Decimal
	RevenueMonth        decimal.Decimal
	RevenueYear         decimal.Decimal
	// PlanDistribution maps plan id to its active subscription count.
	PlanDistribution map[string]int
}

type StatsUseCase interface {
	Dashboard(ctx context.Context, actor *model.User) (*DashboardStats, error)
}

type statsUC struct {
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewStatsUseCase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	logger *zerolog.Logger,
) *statsUC {
	return &statsUC{users: users, subs: subs, payments: payments, log: logger}
}

func (u *statsUC) Dashboard(ctx context.Context, actor *model.User) (*DashboardStats, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	total, err := u.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}

	dist, err := u.subs.CountActiveByPlan(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	activeTotal := 0
	for _, n := range dist {
		activeTotal += n
	}

	stats := &DashboardStats{
		TotalUsers:          total,
		ActiveSubscriptions: activeTotal,
		PlanDistribution:    dist,
	}
	for _, span := range []struct {
		period string
		dst    *decimal.Decimal
	}{
		{"week", &stats.RevenueWeek},
		{"month", &stats.RevenueMonth},
		{"year", &stats.RevenueYear},
	} {
		sum, err := u.payments.SumByPeriod(ctx, repository.NoTX, span.period)
		if err != nil {
			return nil, err
		}
		*span.dst = sum
	}
	return stats, nil
}
