package processor

import (
	"context"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PaymentProcessor = (*NoopProcessor)(nil)

// NoopProcessor stands in when no payment processor is configured. Checkout
// then always takes the manual/local path, and any code path that still
// reaches the processor gets a hard error instead of a silent success.
type NoopProcessor struct{}

func NewNoopProcessor() *NoopProcessor { return &NoopProcessor{} }

func (p *NoopProcessor) Name() string  { return "noop" }
func (p *NoopProcessor) Enabled() bool { return false }

func (p *NoopProcessor) EnsureCustomer(ctx context.Context, c adapter.Customer) (string, error) {
	return "", domain.ErrProcessorDisabled
}

func (p *NoopProcessor) CreateCheckoutSession(ctx context.Context, sp adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error) {
	return nil, domain.ErrProcessorDisabled
}

func (p *NoopProcessor) RetrieveSubscription(ctx context.Context, id string) (*adapter.ProcessorSubscription, error) {
	return nil, domain.ErrProcessorDisabled
}

func (p *NoopProcessor) CancelAtPeriodEnd(ctx context.Context, id string) error {
	return domain.ErrProcessorDisabled
}

func (p *NoopProcessor) SwapPrice(ctx context.Context, id, newPriceID string) error {
	return domain.ErrProcessorDisabled
}
