package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

type PlanUseCase interface {
	Create(ctx context.Context, actor *model.User, plan *model.Plan) error
	Get(ctx context.Context, id string) (*model.Plan, error)
	// List returns active plans only; admins see the full catalog through
	// ListAll.
	List(ctx context.Context) ([]*model.Plan, error)
	ListAll(ctx context.Context, actor *model.User) ([]*model.Plan, error)
	Update(ctx context.Context, actor *model.User, plan *model.Plan) error
	// Deactivate retires a plan from sale. Existing subscriptions keep
	// running on it.
	Deactivate(ctx context.Context, actor *model.User, id string) error
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, log: logger}
}

func (u *planUC) Create(ctx context.Context, actor *model.User, plan *model.Plan) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if plan == nil || plan.ID == "" || plan.Name == "" {
		return domain.ErrInvalidArgument
	}
	if plan.PriceMonthly.IsNegative() || plan.PriceYearly.IsNegative() || plan.TrialDays < 0 {
		return domain.ErrInvalidArgument
	}
	if existing, err := u.plans.FindByID(ctx, repository.NoTX, plan.ID); err == nil && !existing.IsZero() {
		return domain.ErrAlreadyExists
	}
	if err := u.plans.Save(ctx, repository.NoTX, plan); err != nil {
		return err
	}
	u.log.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Msg("plan created")
	return nil
}

func (u *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if plan.IsZero() {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (u *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	plans, err := u.plans.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	active := plans[:0]
	for _, p := range plans {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (u *planUC) ListAll(ctx context.Context, actor *model.User) ([]*model.Plan, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return u.plans.ListAll(ctx, repository.NoTX)
}

func (u *planUC) Update(ctx context.Context, actor *model.User, plan *model.Plan) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if plan == nil || plan.ID == "" {
		return domain.ErrInvalidArgument
	}
	existing, err := u.plans.FindByID(ctx, repository.NoTX, plan.ID)
	if err != nil {
		return err
	}
	if existing.IsZero() {
		return domain.ErrNotFound
	}
	plan.UpdatedAt = time.Now()
	return u.plans.Save(ctx, repository.NoTX, plan)
}

func (u *planUC) Deactivate(ctx context.Context, actor *model.User, id string) error {
	if actor == nil || !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := u.plans.Deactivate(ctx, repository.NoTX, id); err != nil {
		return err
	}
	u.log.Info().Str("plan_id", id).Msg("plan deactivated")
	return nil
}
