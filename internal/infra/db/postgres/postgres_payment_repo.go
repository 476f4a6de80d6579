package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `
id, user_id, subscription_id, amount::text, currency, status, method,
manual_method, transaction_ref, processor_payment_intent_id, processor_invoice_id,
processor_session_id, billing_period_start, billing_period_end, invoice_url,
discount_amount::text, coupon_code, created_at, updated_at, paid_at`

const paymentInsertSQL = `
INSERT INTO payments (
  id, user_id, subscription_id, amount, currency, status, method,
  manual_method, transaction_ref, processor_payment_intent_id, processor_invoice_id,
  processor_session_id, billing_period_start, billing_period_end, invoice_url,
  discount_amount, coupon_code, created_at, updated_at, paid_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

func paymentArgs(p *model.Payment) []any {
	return []any{
		p.ID, p.UserID, p.SubscriptionID, p.Amount.String(), p.Currency,
		string(p.Status), string(p.Method), string(p.ManualMethod), p.TransactionRef,
		p.ProcessorPaymentIntentID, p.ProcessorInvoiceID, p.ProcessorSessionID,
		p.BillingPeriodStart, p.BillingPeriodEnd, p.InvoiceURL,
		p.DiscountAmount.String(), p.CouponCode, p.CreatedAt, p.UpdatedAt, p.PaidAt,
	}
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = paymentInsertSQL + `
ON CONFLICT (id) DO UPDATE SET
  status=$6, transaction_ref=$9, processor_payment_intent_id=$10,
  processor_invoice_id=$11, processor_session_id=$12, invoice_url=$15,
  updated_at=$19, paid_at=$20;`

	_, err := execSQL(ctx, r.pool, tx, q, paymentArgs(p)...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

// UpsertByProcessorInvoiceID keys on the processor invoice id so redelivered
// invoice events converge on one row instead of stacking duplicates.
func (r *paymentRepo) UpsertByProcessorInvoiceID(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p.ProcessorInvoiceID == nil {
		return domain.ErrInvalidArgument
	}
	const q = paymentInsertSQL + `
ON CONFLICT (processor_invoice_id) WHERE processor_invoice_id IS NOT NULL DO UPDATE SET
  status=$6, amount=$4, billing_period_start=$13, billing_period_end=$14,
  invoice_url=$15, updated_at=$19, paid_at=$20;`

	_, err := execSQL(ctx, r.pool, tx, q, paymentArgs(p)...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByProcessorInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE processor_invoice_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) error {
	const q = `UPDATE payments SET status=$2, paid_at=$3, updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SumByPeriod totals succeeded payments since the start of the current
// week/month/year. The period string feeds date_trunc directly, so it is
// whitelisted here.
func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (decimal.Decimal, error) {
	switch period {
	case "week", "month", "year":
	default:
		return decimal.Zero, domain.ErrInvalidArgument
	}
	const q = `
SELECT COALESCE(SUM(amount), 0)::text
  FROM payments
 WHERE status='succeeded' AND paid_at >= date_trunc($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return decimal.Zero, err
	}
	var sum string
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return d, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var amount, discount, status, method, manualMethod string
	if err := row.Scan(
		&p.ID, &p.UserID, &p.SubscriptionID, &amount, &p.Currency, &status, &method,
		&manualMethod, &p.TransactionRef, &p.ProcessorPaymentIntentID, &p.ProcessorInvoiceID,
		&p.ProcessorSessionID, &p.BillingPeriodStart, &p.BillingPeriodEnd, &p.InvoiceURL,
		&discount, &p.CouponCode, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PaymentStatus(status)
	p.Method = model.PaymentMethod(method)
	p.ManualMethod = model.ManualPaymentMethod(manualMethod)
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
