package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Approve confirms a pending manual payment and activates its linked
	// subscription. Admin-only. Deliberately not idempotent: approving an
	// already-processed payment is ErrAlreadyProcessed, not a no-op.
	Approve(ctx context.Context, actor *model.User, paymentID string) (*model.Payment, error)
	Get(ctx context.Context, id string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
	// SumByPeriod totals succeeded payments for the current week/month/year.
	SumByPeriod(ctx context.Context, period string) (decimal.Decimal, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	notes    repository.NotificationRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	notes repository.NotificationRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{payments: payments, subs: subs, notes: notes, tm: tm, log: logger}
}

func (u *paymentUC) Approve(ctx context.Context, actor *model.User, paymentID string) (*model.Payment, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	var payment *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		payment, err = u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != model.PaymentStatusPending {
			return domain.ErrAlreadyProcessed
		}

		now := time.Now()
		if err := payment.Transition(model.PaymentStatusSucceeded, now); err != nil {
			return err
		}
		if err := u.payments.UpdateStatus(ctx, tx, payment.ID, payment.Status, payment.PaidAt); err != nil {
			return err
		}

		// Activation regardless of prior trialing state: the payment is now
		// the authoritative proof.
		if payment.SubscriptionID != nil {
			sub, err := u.subs.FindByID(ctx, tx, *payment.SubscriptionID)
			if err != nil {
				return err
			}
			sub.Status = model.ApplyEvent(sub.Status, model.EventActivate)
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, u.notes, u.log, payment.UserID, model.NotificationPaymentSuccess,
		"Payment Approved",
		"Your manual payment has been verified. Your subscription is now active.")

	u.log.Info().Str("payment_id", payment.ID).Str("user_id", payment.UserID).Msg("manual payment approved")
	return payment, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.payments.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (u *paymentUC) SumByPeriod(ctx context.Context, period string) (decimal.Decimal, error) {
	return u.payments.SumByPeriod(ctx, repository.NoTX, period)
}
