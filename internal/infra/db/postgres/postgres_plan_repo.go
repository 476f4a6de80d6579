package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `
id, name, description, price_monthly::text, price_yearly::text, features,
max_users, max_storage_gb, trial_days, is_active,
processor_price_id_monthly, processor_price_id_yearly, created_at, updated_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO plans (
  id, name, description, price_monthly, price_yearly, features,
  max_users, max_storage_gb, trial_days, is_active,
  processor_price_id_monthly, processor_price_id_yearly, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  name=$2, description=$3, price_monthly=$4, price_yearly=$5, features=$6,
  max_users=$7, max_storage_gb=$8, trial_days=$9, is_active=$10,
  processor_price_id_monthly=$11, processor_price_id_yearly=$12, updated_at=$14;`

	// A nil slice would encode as NULL; the column is NOT NULL.
	features := plan.Features
	if features == nil {
		features = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.Description,
		plan.PriceMonthly.String(), plan.PriceYearly.String(), features,
		plan.MaxUsers, plan.MaxStorageGB, plan.TrialDays, plan.IsActive,
		plan.ProcessorPriceIDMonthly, plan.ProcessorPriceIDYearly,
		plan.CreatedAt, plan.UpdatedAt,
	)
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

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans ORDER BY price_monthly ASC;`
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
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
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

func (r *planRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE plans SET is_active=false, updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	var priceMonthly, priceYearly string
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &priceMonthly, &priceYearly, &p.Features,
		&p.MaxUsers, &p.MaxStorageGB, &p.TrialDays, &p.IsActive,
		&p.ProcessorPriceIDMonthly, &p.ProcessorPriceIDYearly, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	var err error
	if p.PriceMonthly, err = decimal.NewFromString(priceMonthly); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.PriceYearly, err = decimal.NewFromString(priceYearly); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
