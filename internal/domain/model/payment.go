package model

import (
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created, awaiting processor confirmation or admin approval
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed by processor or approved by admin
	PaymentStatusFailed    PaymentStatus = "failed"    // declined or verification failed
	PaymentStatusRefunded  PaymentStatus = "refunded"  // refunded after success
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"   // via external processor
	PaymentMethodManual PaymentMethod = "manual" // offline, admin-verified
)

type ManualPaymentMethod string

const (
	ManualMethodJazzCash     ManualPaymentMethod = "jazzcash"
	ManualMethodEasypaisa    ManualPaymentMethod = "easypaisa"
	ManualMethodBankTransfer ManualPaymentMethod = "bank_transfer"
	ManualMethodNone         ManualPaymentMethod = "none"
)

// Payment records a single charge attempt. Amount is already net of any
// discount; the discount amount and coupon code are denormalized for audit.
type Payment struct {
	ID             string
	UserID         string
	SubscriptionID *string

	Amount   decimal.Decimal
	Currency string
	Status   PaymentStatus
	Method   PaymentMethod

	// Manual payments only.
	ManualMethod   ManualPaymentMethod
	TransactionRef string

	// Processor correlation identifiers.
	ProcessorPaymentIntentID *string
	ProcessorInvoiceID       *string
	ProcessorSessionID       *string

	BillingPeriodStart *time.Time
	BillingPeriodEnd   *time.Time
	InvoiceURL         *string

	DiscountAmount decimal.Decimal
	CouponCode     *string

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

// Transition moves the payment to a new status, enforcing the only legal
// edges: pending->succeeded, pending->failed, succeeded->refunded. A payment
// never goes back to pending.
func (p *Payment) Transition(to PaymentStatus, at time.Time) error {
	ok := false
	switch p.Status {
	case PaymentStatusPending:
		ok = to == PaymentStatusSucceeded || to == PaymentStatusFailed
	case PaymentStatusSucceeded:
		ok = to == PaymentStatusRefunded
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	p.Status = to
	p.UpdatedAt = at
	if to == PaymentStatusSucceeded {
		p.PaidAt = &at
	}
	return nil
}
