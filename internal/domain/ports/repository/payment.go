package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain/model"
)

// PaymentRepository is the port for the payment ledger.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByProcessorInvoiceID(ctx context.Context, tx Tx, invoiceID string) (*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Payment, error)

	// UpsertByProcessorInvoiceID creates or replaces the payment row keyed by
	// its processor invoice id. This is what makes invoice.payment_succeeded
	// reconciliation idempotent under redelivery.
	UpsertByProcessorInvoiceID(ctx context.Context, tx Tx, p *model.Payment) error

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt *time.Time) error
	// SumByPeriod sums succeeded payment amounts since the start of the
	// current week/month/year.
	SumByPeriod(ctx context.Context, tx Tx, period string) (decimal.Decimal, error)
}
