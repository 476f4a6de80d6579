package model

import (
	"time"

	"saas-subscription-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Entitled reports whether the status grants access (counts toward the
// at-most-one-active-or-trialing-per-user invariant).
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Terminal reports whether the status can no longer change. Canceled wins over
// any later reconciliation event for the same subscription.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCanceled
}

// SubscriptionEvent is a lifecycle event applied to a subscription status.
// Both webhook reconciliation and direct actions go through ApplyEvent so the
// precedence rules live in one place.
type SubscriptionEvent string

const (
	EventActivate SubscriptionEvent = "activate"
	EventTrial    SubscriptionEvent = "trial"
	EventPastDue  SubscriptionEvent = "past_due"
	EventCancel   SubscriptionEvent = "cancel"
	EventExpire   SubscriptionEvent = "expire"
)

// ApplyEvent returns the status after applying ev to current. A terminal
// status is never overwritten: an "updated" event arriving after "deleted"
// must not resurrect a canceled subscription. Unknown events keep the current
// status, which also covers processor statuses we deliberately pass over.
func ApplyEvent(current SubscriptionStatus, ev SubscriptionEvent) SubscriptionStatus {
	if current.Terminal() {
		return current
	}
	switch ev {
	case EventActivate:
		return SubscriptionStatusActive
	case EventTrial:
		return SubscriptionStatusTrialing
	case EventPastDue:
		return SubscriptionStatusPastDue
	case EventCancel:
		return SubscriptionStatusCanceled
	case EventExpire:
		return SubscriptionStatusExpired
	}
	return current
}

// EventForProcessorStatus maps a processor-reported subscription status onto a
// lifecycle event. Only trialing and active pass through; anything else is
// left to explicit cancellation handling (ok=false -> keep current status).
func EventForProcessorStatus(status string) (SubscriptionEvent, bool) {
	switch status {
	case "trialing":
		return EventTrial, true
	case "active":
		return EventActivate, true
	}
	return "", false
}

// Subscription is a user's entitlement to a plan. Never hard-deleted.
type Subscription struct {
	ID           string
	UserID       string
	PlanID       string
	BillingCycle BillingCycle
	Status       SubscriptionStatus

	StartDate       time.Time
	EndDate         time.Time
	TrialEndDate    *time.Time
	NextBillingDate time.Time

	// Processor correlation identifiers; nil for locally-activated
	// (manual-payment) subscriptions.
	ProcessorSubscriptionID *string
	ProcessorPriceID        *string

	CancelAtPeriodEnd bool
	CanceledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription builds a subscription starting now. The period end is one
// month or one year out per the cycle; a positive trialDays puts the
// subscription in trialing with a trial end stamp.
func NewSubscription(id, userID string, plan *Plan, cycle BillingCycle, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || plan.IsZero() || !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	end := now.AddDate(0, 1, 0)
	if cycle == BillingCycleYearly {
		end = now.AddDate(1, 0, 0)
	}
	s := &Subscription{
		ID:              id,
		UserID:          userID,
		PlanID:          plan.ID,
		BillingCycle:    cycle,
		Status:          SubscriptionStatusActive,
		StartDate:       now,
		EndDate:         end,
		NextBillingDate: end,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if plan.TrialDays > 0 {
		trialEnd := now.Add(time.Duration(plan.TrialDays) * 24 * time.Hour)
		s.TrialEndDate = &trialEnd
		s.Status = SubscriptionStatusTrialing
	}
	return s, nil
}

// Cancel stamps the subscription canceled at the given time. Idempotent:
// re-canceling an already-canceled subscription changes nothing.
func (s *Subscription) Cancel(at time.Time) {
	if s.Status.Terminal() {
		return
	}
	s.Status = SubscriptionStatusCanceled
	s.CanceledAt = &at
	s.UpdatedAt = at
}
