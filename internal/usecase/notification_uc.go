package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	ListForUser(ctx context.Context, actor *model.User, unreadOnly bool) ([]*model.Notification, error)
	MarkRead(ctx context.Context, actor *model.User, id string) error
}

type notificationUC struct {
	notes repository.NotificationRepository
	log   *zerolog.Logger
}

func NewNotificationUseCase(notes repository.NotificationRepository, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{notes: notes, log: logger}
}

func (u *notificationUC) ListForUser(ctx context.Context, actor *model.User, unreadOnly bool) ([]*model.Notification, error) {
	if actor == nil {
		return nil, domain.ErrForbidden
	}
	return u.notes.ListByUser(ctx, repository.NoTX, actor.ID, unreadOnly)
}

func (u *notificationUC) MarkRead(ctx context.Context, actor *model.User, id string) error {
	if actor == nil {
		return domain.ErrForbidden
	}
	return u.notes.MarkRead(ctx, repository.NoTX, id)
}
