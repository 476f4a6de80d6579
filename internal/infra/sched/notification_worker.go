package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
	red "saas-subscription-billing/internal/infra/redis"
	"saas-subscription-billing/internal/usecase"
)

// NotificationWorker reminds users whose subscription ends within the
// lookahead window. A Redis marker per subscription keeps reruns from
// re-sending the same reminder.
type NotificationWorker struct {
	interval  time.Duration
	lookahead int // days
	subUC     usecase.SubscriptionUseCase
	notes     repository.NotificationRepository
	cache     red.RedisClient
	log       *zerolog.Logger
}

func NewNotificationWorker(
	interval time.Duration,
	lookaheadDays int,
	subUC usecase.SubscriptionUseCase,
	notes repository.NotificationRepository,
	cache red.RedisClient,
	logger *zerolog.Logger,
) *NotificationWorker {
	compLog := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{
		interval:  interval,
		lookahead: lookaheadDays,
		subUC:     subUC,
		notes:     notes,
		cache:     cache,
		log:       &compLog,
	}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting notification worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notification worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *NotificationWorker) runCheck(ctx context.Context) {
	subs, err := w.subUC.FindExpiring(ctx, w.lookahead)
	if err != nil {
		w.log.Error().Err(err).Msg("notification check failed")
		return
	}

	sent := 0
	for _, sub := range subs {
		key := fmt.Sprintf("notify:expiring:%s", sub.ID)
		if _, err := w.cache.Get(ctx, key); err == nil {
			continue // already reminded for this period
		}

		n := model.NewNotification(sub.UserID, model.NotificationSubscriptionExpiring,
			"Subscription Expiring Soon",
			fmt.Sprintf("Your subscription ends on %s. Renew to keep access.", sub.EndDate.Format("January 2, 2006")))
		if err := w.notes.Save(ctx, repository.NoTX, n); err != nil {
			w.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("expiry reminder write failed")
			continue
		}
		markerTTL := time.Duration(w.lookahead+1) * 24 * time.Hour
		_ = w.cache.Set(ctx, key, "1", markerTTL)
		sent++
	}
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("expiry notifications sent")
	}
}
