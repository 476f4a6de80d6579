package repository

import (
	"context"
	"time"

	"saas-subscription-billing/internal/domain/model"
)

// SubscriptionRepository is the port for the subscription ledger.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindEntitledByUser returns the user's active-or-trialing subscription,
	// domain.ErrNotFound when there is none.
	FindEntitledByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	FindByProcessorID(ctx context.Context, tx Tx, processorSubID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)

	// CancelEntitledByUser transitions every active/trialing subscription of
	// the user to canceled, stamping canceled_at. Combined with LockUser this
	// is the atomic half of the at-most-one-entitled invariant.
	CancelEntitledByUser(ctx context.Context, tx Tx, userID string, at time.Time) error

	// LockUser takes a per-user advisory transaction lock so concurrent
	// checkouts serialize on the cancel-existing + create-new sequence.
	// Requires a transaction handle.
	LockUser(ctx context.Context, tx Tx, userID string) error

	// ExpireLapsed marks locally-managed entitled subscriptions whose period
	// ended before now as expired, returning the number affected.
	// Processor-backed subscriptions are excluded; their lifecycle is driven
	// by webhook events.
	ExpireLapsed(ctx context.Context, tx Tx, now time.Time) (int, error)

	// --- Statistics read-only methods ---
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
	FindExpiring(ctx context.Context, tx Tx, withinDays int) ([]*model.Subscription, error)
}
