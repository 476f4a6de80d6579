package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase reconciles the local ledgers against the processor's event
// stream. Events may be redelivered or arrive out of order, so every handler
// is safe to run multiple times and a terminal local state is never regressed
// by a late event.
type WebhookUseCase interface {
	HandleEvent(ctx context.Context, ev adapter.Event) error
}

type webhookUC struct {
	plans     repository.PlanRepository
	subs      repository.SubscriptionRepository
	payments  repository.PaymentRepository
	notes     repository.NotificationRepository
	processor adapter.PaymentProcessor
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewWebhookUseCase(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	notes repository.NotificationRepository,
	processor adapter.PaymentProcessor,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{plans: plans, subs: subs, payments: payments, notes: notes, processor: processor, tm: tm, log: logger}
}

// HandleEvent dispatches by event kind. Handler-internal failures are logged
// and swallowed: the processor owns redelivery, and a non-2xx response buys
// nothing but duplicate alerts. Unrecognized kinds are a forward-compatible
// no-op.
func (u *webhookUC) HandleEvent(ctx context.Context, ev adapter.Event) error {
	switch ev.Kind {
	case adapter.EventCheckoutSessionCompleted:
		u.handleCheckoutCompleted(ctx, ev.Session)
	case adapter.EventSubscriptionCreated, adapter.EventSubscriptionUpdated:
		u.handleSubscriptionUpdated(ctx, ev.Subscription)
	case adapter.EventSubscriptionDeleted:
		u.handleSubscriptionDeleted(ctx, ev.Subscription)
	case adapter.EventInvoicePaymentSucceeded:
		u.handleInvoicePaymentSucceeded(ctx, ev.Invoice)
	case adapter.EventInvoicePaymentFailed:
		u.handleInvoicePaymentFailed(ctx, ev.Invoice)
	default:
		u.log.Debug().Str("kind", string(ev.Kind)).Msg("unhandled processor event kind")
	}
	return nil
}

func (u *webhookUC) handleCheckoutCompleted(ctx context.Context, session *adapter.SessionEvent) {
	if session == nil || session.Metadata.UserID == "" || session.Metadata.PlanID == "" {
		u.log.Error().Msg("checkout session completed without correlation metadata")
		return
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, session.Metadata.PlanID)
	if err != nil {
		u.log.Error().Err(err).Str("plan_id", session.Metadata.PlanID).Msg("plan not found for completed session")
		return
	}

	procSub, err := u.processor.RetrieveSubscription(ctx, session.SubscriptionID)
	if err != nil {
		u.log.Error().Err(err).Str("processor_sub_id", session.SubscriptionID).Msg("failed to retrieve processor subscription")
		return
	}

	cycle := model.BillingCycle(session.Metadata.BillingCycle)
	if !cycle.Valid() {
		cycle = model.BillingCycleMonthly
	}

	now := time.Now()
	status := model.SubscriptionStatusActive
	if procSub.Status == "trialing" {
		status = model.SubscriptionStatusTrialing
	}

	sub := &model.Subscription{
		ID:                      uuid.NewString(),
		UserID:                  session.Metadata.UserID,
		PlanID:                  plan.ID,
		BillingCycle:            cycle,
		Status:                  status,
		StartDate:               procSub.CurrentPeriodStart,
		EndDate:                 procSub.CurrentPeriodEnd,
		TrialEndDate:            procSub.TrialEnd,
		NextBillingDate:         procSub.CurrentPeriodEnd,
		ProcessorSubscriptionID: &procSub.ID,
		ProcessorPriceID:        &procSub.PriceID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	var replayed bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.LockUser(ctx, tx, sub.UserID); err != nil {
			return err
		}
		// The replay check holds the user lock, so a concurrent redelivery
		// waits here and then sees the row the first delivery inserted.
		if existing, err := u.subs.FindByProcessorID(ctx, tx, procSub.ID); err == nil && existing != nil {
			replayed = true
			return nil
		}
		if err := u.subs.CancelEntitledByUser(ctx, tx, sub.UserID, now); err != nil {
			return err
		}
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		u.log.Error().Err(err).Str("user_id", sub.UserID).Msg("failed to reconcile completed checkout")
		return
	}
	if replayed {
		u.log.Debug().Str("processor_sub_id", procSub.ID).Msg("checkout session already reconciled")
		return
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationPaymentSuccess,
		"Subscription Activated",
		fmt.Sprintf("Your subscription to %s has been activated.", plan.Name))
}

func (u *webhookUC) handleSubscriptionUpdated(ctx context.Context, procSub *adapter.ProcessorSubscription) {
	if procSub == nil {
		return
	}
	sub, err := u.subs.FindByProcessorID(ctx, repository.NoTX, procSub.ID)
	if err != nil {
		u.log.Error().Err(err).Str("processor_sub_id", procSub.ID).Msg("subscription not found for update event")
		return
	}

	// ApplyEvent keeps terminal canceled intact, so a late "updated" cannot
	// resurrect a subscription the "deleted" handler already closed.
	if ev, ok := model.EventForProcessorStatus(procSub.Status); ok {
		sub.Status = model.ApplyEvent(sub.Status, ev)
	}
	sub.CancelAtPeriodEnd = procSub.CancelAtPeriodEnd
	if !procSub.CurrentPeriodEnd.IsZero() {
		sub.EndDate = procSub.CurrentPeriodEnd
		sub.NextBillingDate = procSub.CurrentPeriodEnd
	}
	if procSub.CanceledAt != nil {
		sub.Status = model.ApplyEvent(sub.Status, model.EventCancel)
		sub.CanceledAt = procSub.CanceledAt
	}
	sub.UpdatedAt = time.Now()

	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to apply subscription update")
	}
}

func (u *webhookUC) handleSubscriptionDeleted(ctx context.Context, procSub *adapter.ProcessorSubscription) {
	if procSub == nil {
		return
	}
	sub, err := u.subs.FindByProcessorID(ctx, repository.NoTX, procSub.ID)
	if err != nil {
		u.log.Debug().Str("processor_sub_id", procSub.ID).Msg("subscription not found for delete event")
		return
	}
	if sub.Status.Terminal() {
		// Redelivery of a deletion we already applied.
		return
	}

	sub.Cancel(time.Now())
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to cancel subscription")
		return
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationSubscriptionCancelled,
		"Subscription Cancelled",
		"Your subscription has been cancelled.")
}

func (u *webhookUC) handleInvoicePaymentSucceeded(ctx context.Context, inv *adapter.Invoice) {
	if inv == nil {
		return
	}
	sub, err := u.subs.FindByProcessorID(ctx, repository.NoTX, inv.SubscriptionID)
	if err != nil {
		u.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("subscription not found for succeeded invoice")
		return
	}

	now := time.Now()
	amount := minorToDecimal(inv.AmountPaidMinor)
	payment := &model.Payment{
		ID:                 uuid.NewString(),
		UserID:             sub.UserID,
		SubscriptionID:     &sub.ID,
		Amount:             amount,
		Currency:           inv.Currency,
		Status:             model.PaymentStatusSucceeded,
		Method:             model.PaymentMethodCard,
		ManualMethod:       model.ManualMethodNone,
		ProcessorInvoiceID: &inv.ID,
		BillingPeriodStart: &inv.PeriodStart,
		BillingPeriodEnd:   &inv.PeriodEnd,
		DiscountAmount:     decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
		PaidAt:             &now,
	}
	if inv.HostedInvoiceURL != "" {
		payment.InvoiceURL = &inv.HostedInvoiceURL
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Keyed by invoice id: redelivery overwrites the same row instead of
		// stacking duplicates.
		if err := u.payments.UpsertByProcessorInvoiceID(ctx, tx, payment); err != nil {
			return err
		}
		if !inv.PeriodEnd.IsZero() {
			sub.NextBillingDate = inv.PeriodEnd
			sub.EndDate = inv.PeriodEnd
			sub.UpdatedAt = now
			return u.subs.Save(ctx, tx, sub)
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("failed to reconcile succeeded invoice")
		return
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationPaymentSuccess,
		"Payment Successful",
		fmt.Sprintf("Your payment of $%s has been processed successfully.", amount.StringFixed(2)))
}

func (u *webhookUC) handleInvoicePaymentFailed(ctx context.Context, inv *adapter.Invoice) {
	if inv == nil {
		return
	}
	sub, err := u.subs.FindByProcessorID(ctx, repository.NoTX, inv.SubscriptionID)
	if err != nil {
		return
	}

	// Retried attempts on the same invoice converge on one ledger row via the
	// invoice-keyed upsert. A failure arriving after the invoice settled is
	// stale and must not regress the succeeded row.
	existing, ferr := u.payments.FindByProcessorInvoiceID(ctx, repository.NoTX, inv.ID)
	redelivered := ferr == nil && existing != nil
	if redelivered && existing.Status == model.PaymentStatusSucceeded {
		u.log.Debug().Str("invoice_id", inv.ID).Msg("ignoring failure event for a settled invoice")
		return
	}

	now := time.Now()
	sub.Status = model.ApplyEvent(sub.Status, model.EventPastDue)
	sub.UpdatedAt = now
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to mark subscription past_due")
		return
	}

	due := minorToDecimal(inv.AmountDueMinor)
	payment := &model.Payment{
		ID:                 uuid.NewString(),
		UserID:             sub.UserID,
		SubscriptionID:     &sub.ID,
		Amount:             due,
		Currency:           inv.Currency,
		Status:             model.PaymentStatusFailed,
		Method:             model.PaymentMethodCard,
		ManualMethod:       model.ManualMethodNone,
		ProcessorInvoiceID: &inv.ID,
		DiscountAmount:     decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if inv.HostedInvoiceURL != "" {
		payment.InvoiceURL = &inv.HostedInvoiceURL
	}
	if err := u.payments.UpsertByProcessorInvoiceID(ctx, repository.NoTX, payment); err != nil {
		u.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("failed to record failed payment")
		return
	}
	if redelivered {
		// Same attempt redelivered; the user was already alerted.
		return
	}

	notify(ctx, u.notes, u.log, sub.UserID, model.NotificationPaymentFailed,
		"Payment Failed",
		fmt.Sprintf("Your payment of $%s failed. Please update your payment method.", due.StringFixed(2)))
}

// minorToDecimal converts a processor minor-unit amount (cents) to the major
// unit stored in the ledger.
func minorToDecimal(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).Round(2)
}
