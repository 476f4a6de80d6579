package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutOptions carries the optional knobs of a checkout request.
type CheckoutOptions struct {
	ManualMethod   model.ManualPaymentMethod
	TransactionRef string
	CouponCode     string
}

// CheckoutResult is either a locally-activated subscription (manual path) or a
// processor checkout session handle the caller redirects the user to.
type CheckoutResult struct {
	Subscription *model.Subscription
	SessionID    string
	SessionURL   string
	Message      string
}

type CheckoutUseCase interface {
	// Initiate starts a subscription purchase. When the processor is enabled
	// and the plan carries a price mapping for the cycle, it opens a hosted
	// checkout session and creates no local rows (the webhook reconciler owns
	// those). Otherwise it activates a local subscription with a pending
	// manual payment awaiting admin approval.
	Initiate(ctx context.Context, userID, planID string, cycle model.BillingCycle, opts CheckoutOptions) (*CheckoutResult, error)
}

// CheckoutURLs are the redirect targets passed to the processor's hosted page.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

type checkoutUC struct {
	plans     repository.PlanRepository
	coupons   repository.CouponRepository
	subs      repository.SubscriptionRepository
	payments  repository.PaymentRepository
	users     repository.UserRepository
	notes     repository.NotificationRepository
	processor adapter.PaymentProcessor
	tm        repository.TransactionManager
	urls      CheckoutURLs
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	plans repository.PlanRepository,
	coupons repository.CouponRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	notes repository.NotificationRepository,
	processor adapter.PaymentProcessor,
	tm repository.TransactionManager,
	urls CheckoutURLs,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		plans: plans, coupons: coupons, subs: subs, payments: payments,
		users: users, notes: notes, processor: processor, tm: tm,
		urls: urls, log: logger,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, userID, planID string, cycle model.BillingCycle, opts CheckoutOptions) (*CheckoutResult, error) {
	if userID == "" || !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil || plan.IsZero() || !plan.IsActive {
		return nil, domain.ErrNotFound
	}

	now := time.Now()
	amount := plan.PriceFor(cycle)

	// Resolve the coupon up front. An inapplicable or unknown coupon never
	// aborts checkout; it is ignored with zero discount.
	var coupon *model.Coupon
	discount := decimal.Zero
	if opts.CouponCode != "" {
		coupon, discount = u.resolveCoupon(ctx, opts.CouponCode, amount, now, planID)
	}

	if u.processor.Enabled() {
		if priceID := plan.ProcessorPriceID(cycle); priceID != nil {
			return u.processorCheckout(ctx, userID, plan, cycle, *priceID, coupon)
		}
	}
	return u.localCheckout(ctx, userID, plan, cycle, opts, coupon, amount, discount, now)
}

func (u *checkoutUC) resolveCoupon(ctx context.Context, code string, amount decimal.Decimal, now time.Time, planID string) (*model.Coupon, decimal.Decimal) {
	coupon, err := u.coupons.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		u.log.Debug().Str("code", code).Msg("coupon not found at checkout, ignoring")
		return nil, decimal.Zero
	}
	discount, err := model.ComputeDiscount(coupon, amount, now, planID)
	if err != nil {
		u.log.Debug().Err(err).Str("code", coupon.Code).Msg("coupon not applicable at checkout, ignoring")
		return nil, decimal.Zero
	}
	return coupon, discount
}

// processorCheckout opens a hosted checkout session. No subscription or
// payment rows are created here; the webhook reconciler creates them when the
// processor confirms, which avoids split-brain between the synchronous
// response and the asynchronous confirmation.
func (u *checkoutUC) processorCheckout(ctx context.Context, userID string, plan *model.Plan, cycle model.BillingCycle, priceID string, coupon *model.Coupon) (*CheckoutResult, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	customerID := ""
	if user.ProcessorCustomerID != nil {
		customerID = *user.ProcessorCustomerID
	} else {
		customerID, err = u.processor.EnsureCustomer(ctx, adapter.Customer{UserID: user.ID, Email: user.Email, Name: user.Name})
		if err != nil {
			return nil, fmt.Errorf("%w: create customer: %v", domain.ErrUpstreamPayment, err)
		}
		if err := u.users.SetProcessorCustomerID(ctx, repository.NoTX, user.ID, customerID); err != nil {
			return nil, err
		}
	}

	session, err := u.processor.CreateCheckoutSession(ctx, adapter.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		TrialDays:  plan.TrialDays,
		SuccessURL: u.urls.SuccessURL,
		CancelURL:  u.urls.CancelURL,
		Metadata: adapter.SessionMetadata{
			UserID:       userID,
			PlanID:       plan.ID,
			BillingCycle: string(cycle),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", domain.ErrUpstreamPayment, err)
	}

	// Redeem after the session exists. A session abandoned before payment
	// still consumes the coupon; accepted, the processor path has no local
	// transaction to tie the redemption to.
	if coupon != nil {
		if err := u.coupons.RedeemOnce(ctx, repository.NoTX, coupon.Code); err != nil {
			u.log.Warn().Err(err).Str("code", coupon.Code).Msg("coupon redemption failed after session creation")
		}
	}

	return &CheckoutResult{SessionID: session.ID, SessionURL: session.URL}, nil
}

// localCheckout is the manual / processor-unconfigured path: the subscription
// activates immediately and a pending manual payment waits for admin
// approval. The whole mutation set is one transaction under a per-user lock
// so two concurrent checkouts cannot both leave an entitled subscription.
func (u *checkoutUC) localCheckout(ctx context.Context, userID string, plan *model.Plan, cycle model.BillingCycle, opts CheckoutOptions, coupon *model.Coupon, amount, discount decimal.Decimal, now time.Time) (*CheckoutResult, error) {
	var sub *model.Subscription

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := u.subs.CancelEntitledByUser(ctx, tx, userID, now); err != nil {
			return err
		}

		var err error
		sub, err = model.NewSubscription(uuid.NewString(), userID, plan, cycle, now)
		if err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}

		var couponCode *string
		if coupon != nil {
			// Losing the redemption race inside the transaction downgrades
			// the checkout to full price instead of failing it.
			if err := u.coupons.RedeemOnce(ctx, tx, coupon.Code); err != nil {
				if !errors.Is(err, domain.ErrCouponUsageLimit) {
					return err
				}
				u.log.Debug().Str("code", coupon.Code).Msg("coupon exhausted during checkout, dropping discount")
				discount = decimal.Zero
			} else {
				couponCode = &coupon.Code
			}
		}

		manualMethod := opts.ManualMethod
		if manualMethod == "" {
			manualMethod = model.ManualMethodNone
		}
		ref := opts.TransactionRef
		if ref == "" {
			ref = fmt.Sprintf("CARD-%d", now.UnixMilli())
		}

		payment := &model.Payment{
			ID:             uuid.NewString(),
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Amount:         decimal.Max(decimal.Zero, amount.Sub(discount)).Round(2),
			Currency:       "usd",
			Status:         model.PaymentStatusPending,
			Method:         model.PaymentMethodManual,
			ManualMethod:   manualMethod,
			TransactionRef: ref,
			DiscountAmount: discount,
			CouponCode:     couponCode,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, u.notes, u.log, userID, model.NotificationPaymentPending,
		"Payment Pending Verification",
		fmt.Sprintf("Your manual payment via %s is being verified. Your subscription will activate soon.", displayManualMethod(opts.ManualMethod)))

	msg := "Subscription activated successfully!"
	if plan.TrialDays > 0 {
		msg = fmt.Sprintf("Subscription started with %d days free trial!", plan.TrialDays)
	}
	return &CheckoutResult{Subscription: sub, Message: msg}, nil
}

func displayManualMethod(m model.ManualPaymentMethod) string {
	if m == "" || m == model.ManualMethodNone {
		return "Manual"
	}
	return string(m)
}
