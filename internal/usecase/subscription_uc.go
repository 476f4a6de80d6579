package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Cancel schedules the subscription to end at the current period boundary.
	// Entitlement is kept until then; the status does not change here. Only
	// the owner or an admin may cancel.
	Cancel(ctx context.Context, actor *model.User, subscriptionID string) (*model.Subscription, error)
	// Upgrade moves an entitled subscription to a different active plan. On
	// processor-backed subscriptions the price swap is delegated upstream and
	// proration is the processor's business.
	Upgrade(ctx context.Context, actor *model.User, subscriptionID, newPlanID string) (*model.Subscription, error)
	GetActiveForUser(ctx context.Context, userID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
	// FinishExpired sweeps locally-managed subscriptions whose period ended
	// and marks them expired. Called by the expiry worker.
	FinishExpired(ctx context.Context) (int, error)
	// FindExpiring lists entitled subscriptions ending within the given
	// number of days, for expiry reminders.
	FindExpiring(ctx context.Context, withinDays int) ([]*model.Subscription, error)
}

type subscriptionUC struct {
	subs      repository.SubscriptionRepository
	plans     repository.PlanRepository
	notes     repository.NotificationRepository
	processor adapter.PaymentProcessor
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	notes repository.NotificationRepository,
	processor adapter.PaymentProcessor,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{subs: subs, plans: plans, notes: notes, processor: processor, log: logger}
}

func (u *subscriptionUC) authorize(actor *model.User, sub *model.Subscription) error {
	if actor == nil {
		return domain.ErrForbidden
	}
	if actor.ID != sub.UserID && !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (u *subscriptionUC) Cancel(ctx context.Context, actor *model.User, subscriptionID string) (*model.Subscription, error) {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := u.authorize(actor, sub); err != nil {
		return nil, err
	}
	if sub.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	if sub.CancelAtPeriodEnd {
		// Already scheduled; repeat requests are a no-op.
		return sub, nil
	}

	if sub.ProcessorSubscriptionID != nil {
		if err := u.processor.CancelAtPeriodEnd(ctx, *sub.ProcessorSubscriptionID); err != nil {
			return nil, fmt.Errorf("%w: cancel subscription: %v", domain.ErrUpstreamPayment, err)
		}
	}

	now := time.Now()
	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &now
	sub.UpdatedAt = now
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationSubscriptionCancelled,
		"Subscription Cancellation Scheduled",
		fmt.Sprintf("Your subscription will remain active until %s.", sub.EndDate.Format("January 2, 2006")))

	u.log.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("subscription cancellation scheduled")
	return sub, nil
}

func (u *subscriptionUC) Upgrade(ctx context.Context, actor *model.User, subscriptionID, newPlanID string) (*model.Subscription, error) {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := u.authorize(actor, sub); err != nil {
		return nil, err
	}
	if !sub.Status.Entitled() {
		return nil, domain.ErrInvalidTransition
	}
	if sub.PlanID == newPlanID {
		return nil, domain.ErrInvalidArgument
	}

	newPlan, err := u.plans.FindByID(ctx, repository.NoTX, newPlanID)
	if err != nil || newPlan.IsZero() || !newPlan.IsActive {
		return nil, domain.ErrNotFound
	}

	if sub.ProcessorSubscriptionID != nil {
		priceID := newPlan.ProcessorPriceID(sub.BillingCycle)
		if priceID == nil {
			return nil, domain.ErrInvalidArgument
		}
		if err := u.processor.SwapPrice(ctx, *sub.ProcessorSubscriptionID, *priceID); err != nil {
			return nil, fmt.Errorf("%w: swap price: %v", domain.ErrUpstreamPayment, err)
		}
		sub.ProcessorPriceID = priceID
	}

	sub.PlanID = newPlan.ID
	sub.UpdatedAt = time.Now()
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationPlanChanged,
		"Plan Changed",
		fmt.Sprintf("Your subscription has been moved to the %s plan.", newPlan.Name))

	u.log.Info().Str("subscription_id", sub.ID).Str("plan_id", newPlan.ID).Msg("subscription plan changed")
	return sub, nil
}

func (u *subscriptionUC) GetActiveForUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return u.subs.FindEntitledByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return u.subs.ListByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	return u.subs.ExpireLapsed(ctx, repository.NoTX, time.Now())
}

func (u *subscriptionUC) FindExpiring(ctx context.Context, withinDays int) ([]*model.Subscription, error) {
	return u.subs.FindExpiring(ctx, repository.NoTX, withinDays)
}
