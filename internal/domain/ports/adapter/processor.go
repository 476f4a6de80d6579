package adapter

import (
	"context"
	"time"
)

// PaymentProcessor is the hex port for the external payment platform. A
// disabled implementation stands in when no processor is configured; callers
// branch on Enabled() instead of nil-checking a client singleton.
type PaymentProcessor interface {
	Name() string
	Enabled() bool

	// EnsureCustomer returns the processor-side customer id for the user,
	// creating the customer on first use.
	EnsureCustomer(ctx context.Context, c Customer) (string, error)
	// CreateCheckoutSession opens a hosted checkout scoped to a price id. The
	// metadata is echoed back on checkout.session.completed for correlation.
	CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error)
	// RetrieveSubscription fetches the processor's canonical subscription.
	RetrieveSubscription(ctx context.Context, id string) (*ProcessorSubscription, error)
	// CancelAtPeriodEnd schedules cancellation at the period boundary.
	CancelAtPeriodEnd(ctx context.Context, id string) error
	// SwapPrice moves the subscription to a new price; proration is the
	// processor's business.
	SwapPrice(ctx context.Context, id, newPriceID string) error
}

type Customer struct {
	UserID string
	Email  string
	Name   string
}

type SessionMetadata struct {
	UserID       string
	PlanID       string
	BillingCycle string
}

type CheckoutSessionParams struct {
	CustomerID string
	PriceID    string
	TrialDays  int
	SuccessURL string
	CancelURL  string
	Metadata   SessionMetadata
}

type CheckoutSession struct {
	ID  string
	URL string
}

// ProcessorSubscription is the provider-agnostic view of a processor-side
// subscription object.
type ProcessorSubscription struct {
	ID                 string
	Status             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

// Invoice amounts are in minor currency units as delivered by the processor;
// the reconciler divides by 100 before storage.
type Invoice struct {
	ID               string
	SubscriptionID   string
	Currency         string
	AmountPaidMinor  int64
	AmountDueMinor   int64
	PeriodStart      time.Time
	PeriodEnd        time.Time
	HostedInvoiceURL string
}

type EventKind string

const (
	EventCheckoutSessionCompleted EventKind = "checkout.session.completed"
	EventSubscriptionCreated      EventKind = "customer.subscription.created"
	EventSubscriptionUpdated      EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted      EventKind = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  EventKind = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     EventKind = "invoice.payment_failed"
)

// SessionEvent carries the completed-checkout payload the reconciler needs.
type SessionEvent struct {
	SessionID      string
	SubscriptionID string
	Metadata       SessionMetadata
}

// Event is one inbound processor notification. Exactly one payload field is
// set, matching the kind; unrecognized kinds arrive with all payloads nil.
type Event struct {
	Kind         EventKind
	Session      *SessionEvent
	Subscription *ProcessorSubscription
	Invoice      *Invoice
}
