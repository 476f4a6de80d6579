package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

const couponColumns = `
id, code, name, description, discount_type, discount_value::text,
min_amount::text, max_discount::text, valid_from, valid_until,
usage_limit, used_count, is_active, applicable_plan_ids, created_at, updated_at`

func (r *couponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (
  id, code, name, description, discount_type, discount_value,
  min_amount, max_discount, valid_from, valid_until,
  usage_limit, used_count, is_active, applicable_plan_ids, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  code=$2, name=$3, description=$4, discount_type=$5, discount_value=$6,
  min_amount=$7, max_discount=$8, valid_from=$9, valid_until=$10,
  usage_limit=$11, is_active=$13, applicable_plan_ids=$14, updated_at=$16;`

	var maxDiscount *string
	if c.MaxDiscount != nil {
		s := c.MaxDiscount.String()
		maxDiscount = &s
	}
	// A nil slice would encode as NULL; the column is NOT NULL.
	planIDs := c.ApplicablePlanIDs
	if planIDs == nil {
		planIDs = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Code, c.Name, c.Description, string(c.DiscountType), c.DiscountValue.String(),
		c.MinAmount.String(), maxDiscount, c.ValidFrom, c.ValidUntil,
		c.UsageLimit, c.UsedCount, c.IsActive, planIDs, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *couponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons WHERE code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, strings.ToUpper(code))
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *couponRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE coupons SET is_active=false, updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RedeemOnce is a single guarded UPDATE so the usage limit holds under
// concurrent redemption; there is no read-then-write window.
func (r *couponRepo) RedeemOnce(ctx context.Context, tx repository.Tx, code string) error {
	const q = `
UPDATE coupons
   SET used_count = used_count + 1, updated_at = NOW()
 WHERE code = $1
   AND is_active
   AND (usage_limit IS NULL OR used_count < usage_limit);`

	ct, err := execSQL(ctx, r.pool, tx, q, strings.ToUpper(code))
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if ct.RowsAffected() == 0 {
		// Distinguish missing, deactivated, and exhausted codes.
		row, err := pickRow(ctx, r.pool, tx, `SELECT is_active FROM coupons WHERE code=$1;`, strings.ToUpper(code))
		if err != nil {
			return err
		}
		var active bool
		if err := row.Scan(&active); err != nil {
			if err == pgx.ErrNoRows {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}
		if !active {
			return domain.ErrCouponInactive
		}
		return domain.ErrCouponUsageLimit
	}
	return nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	var discountType, discountValue, minAmount string
	var maxDiscount *string
	if err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &discountType, &discountValue,
		&minAmount, &maxDiscount, &c.ValidFrom, &c.ValidUntil,
		&c.UsageLimit, &c.UsedCount, &c.IsActive, &c.ApplicablePlanIDs, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	c.DiscountType = model.DiscountType(discountType)
	var err error
	if c.DiscountValue, err = decimal.NewFromString(discountValue); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if c.MinAmount, err = decimal.NewFromString(minAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if maxDiscount != nil {
		d, err := decimal.NewFromString(*maxDiscount)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		c.MaxDiscount = &d
	}
	return c, nil
}
