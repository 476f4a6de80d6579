package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"saas-subscription-billing/internal/config"
	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PaymentProcessor = (*StripeProcessor)(nil)

const (
	metaUserID       = "user_id"
	metaPlanID       = "plan_id"
	metaBillingCycle = "billing_cycle"
)

// StripeProcessor implements the PaymentProcessor port on the Stripe API.
type StripeProcessor struct {
	client        *stripe.Client
	webhookSecret string
	log           *zerolog.Logger
}

func NewStripeProcessor(cfg config.StripeConfig, logger *zerolog.Logger) *StripeProcessor {
	return &StripeProcessor{
		client:        stripe.NewClient(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		log:           logger,
	}
}

func (p *StripeProcessor) Name() string  { return "stripe" }
func (p *StripeProcessor) Enabled() bool { return true }

func (p *StripeProcessor) EnsureCustomer(ctx context.Context, c adapter.Customer) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(c.Email),
		Name:  stripe.String(c.Name),
		Metadata: map[string]string{
			metaUserID: c.UserID,
		},
	}
	cust, err := p.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cust.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, sp adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error) {
	meta := map[string]string{
		metaUserID:       sp.Metadata.UserID,
		metaPlanID:       sp.Metadata.PlanID,
		metaBillingCycle: sp.Metadata.BillingCycle,
	}
	subData := &stripe.CheckoutSessionCreateSubscriptionDataParams{
		Metadata: meta,
	}
	if sp.TrialDays > 0 {
		subData.TrialPeriodDays = stripe.Int64(int64(sp.TrialDays))
	}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(sp.CustomerID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(sp.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: subData,
		// Session metadata duplicates the subscription metadata so the
		// completed-session event carries correlation ids on its own.
		Metadata:   meta,
		SuccessURL: stripe.String(sp.SuccessURL),
		CancelURL:  stripe.String(sp.CancelURL),
	}
	sess, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &adapter.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProcessor) RetrieveSubscription(ctx context.Context, id string) (*adapter.ProcessorSubscription, error) {
	sub, err := p.client.V1Subscriptions.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve subscription: %w", err)
	}
	return translateSubscription(sub), nil
}

func (p *StripeProcessor) CancelAtPeriodEnd(ctx context.Context, id string) error {
	_, err := p.client.V1Subscriptions.Update(ctx, id, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("stripe cancel at period end: %w", err)
	}
	return nil
}

func (p *StripeProcessor) SwapPrice(ctx context.Context, id, newPriceID string) error {
	sub, err := p.client.V1Subscriptions.Retrieve(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("stripe retrieve subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("stripe subscription %s has no items", id)
	}
	_, err = p.client.V1Subscriptions.Update(ctx, id, &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(newPriceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	})
	if err != nil {
		return fmt.Errorf("stripe swap price: %w", err)
	}
	return nil
}

// ParseEvent verifies the webhook signature and translates the raw Stripe
// event into the provider-agnostic form. Event kinds outside the handled set
// come back with no payload; the reconciler treats them as a no-op.
func (p *StripeProcessor) ParseEvent(payload []byte, sigHeader string) (adapter.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return adapter.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	out := adapter.Event{Kind: adapter.EventKind(ev.Type)}
	switch out.Kind {
	case adapter.EventCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return adapter.Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		se := &adapter.SessionEvent{
			SessionID: sess.ID,
			Metadata: adapter.SessionMetadata{
				UserID:       sess.Metadata[metaUserID],
				PlanID:       sess.Metadata[metaPlanID],
				BillingCycle: sess.Metadata[metaBillingCycle],
			},
		}
		if sess.Subscription != nil {
			se.SubscriptionID = sess.Subscription.ID
		}
		out.Session = se

	case adapter.EventSubscriptionCreated, adapter.EventSubscriptionUpdated, adapter.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return adapter.Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = translateSubscription(&sub)

	case adapter.EventInvoicePaymentSucceeded, adapter.EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return adapter.Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Invoice = translateInvoice(&inv)
	}
	return out, nil
}

func translateSubscription(sub *stripe.Subscription) *adapter.ProcessorSubscription {
	out := &adapter.ProcessorSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	// Billing period bounds live on the subscription item.
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		out.TrialEnd = &t
	}
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0).UTC()
		out.CanceledAt = &t
	}
	return out
}

func translateInvoice(inv *stripe.Invoice) *adapter.Invoice {
	out := &adapter.Invoice{
		ID:               inv.ID,
		Currency:         string(inv.Currency),
		AmountPaidMinor:  inv.AmountPaid,
		AmountDueMinor:   inv.AmountDue,
		PeriodStart:      time.Unix(inv.PeriodStart, 0).UTC(),
		PeriodEnd:        time.Unix(inv.PeriodEnd, 0).UTC(),
		HostedInvoiceURL: inv.HostedInvoiceURL,
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return out
}
