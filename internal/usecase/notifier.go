package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// notify records a user-facing notification, best-effort. Lifecycle
// transitions must not fail because the notification write did.
func notify(ctx context.Context, notes repository.NotificationRepository, log *zerolog.Logger, userID string, typ model.NotificationType, title, message string) {
	n := model.NewNotification(userID, typ, title, message)
	if err := notes.Save(ctx, repository.NoTX, n); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("type", string(typ)).Msg("notification write failed")
	}
}
