package repository

import (
	"context"

	"saas-subscription-billing/internal/domain/model"
)

// NotificationRepository records user-facing notifications. Writes are
// best-effort from the core's perspective: a failure must never abort the
// lifecycle transition that triggered it.
type NotificationRepository interface {
	Save(ctx context.Context, tx Tx, n *model.Notification) error
	ListByUser(ctx context.Context, tx Tx, userID string, unreadOnly bool) ([]*model.Notification, error)
	MarkRead(ctx context.Context, tx Tx, id string) error
}
