package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `
id, user_id, plan_id, billing_cycle, status, start_date, end_date,
trial_end_date, next_billing_date, processor_subscription_id, processor_price_id,
cancel_at_period_end, canceled_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, billing_cycle, status, start_date, end_date,
  trial_end_date, next_billing_date, processor_subscription_id, processor_price_id,
  cancel_at_period_end, canceled_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$3, billing_cycle=$4, status=$5, start_date=$6, end_date=$7,
  trial_end_date=$8, next_billing_date=$9, processor_subscription_id=$10,
  processor_price_id=$11, cancel_at_period_end=$12, canceled_at=$13, updated_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, string(s.BillingCycle), string(s.Status),
		s.StartDate, s.EndDate, s.TrialEndDate, s.NextBillingDate,
		s.ProcessorSubscriptionID, s.ProcessorPriceID,
		s.CancelAtPeriodEnd, s.CanceledAt, s.CreatedAt, s.UpdatedAt,
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

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindEntitledByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status IN ('active','trialing')
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) FindByProcessorID(ctx context.Context, tx repository.Tx, processorSubID string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE processor_subscription_id=$1;`
	return r.queryOne(ctx, tx, q, processorSubID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) CancelEntitledByUser(ctx context.Context, tx repository.Tx, userID string, at time.Time) error {
	const q = `
UPDATE subscriptions
   SET status='canceled', canceled_at=$2, updated_at=$2
 WHERE user_id=$1 AND status IN ('active','trialing');`
	_, err := execSQL(ctx, r.pool, tx, q, userID, at)
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

// LockUser serializes subscription mutations per user with an advisory
// transaction lock. Only meaningful inside a transaction; a bare pool
// connection would hold the lock until the session ends, so that is rejected.
func (r *subscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	const q = `SELECT pg_advisory_xact_lock($1);`
	_, err := execSQL(ctx, r.pool, tx, q, lockKey(userID))
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
UPDATE subscriptions
   SET status='expired', updated_at=$1
 WHERE status IN ('active','trialing','past_due')
   AND end_date <= $1
   AND processor_subscription_id IS NULL;`
	ct, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return 0, err
		default:
			return 0, domain.ErrOperationFailed
		}
	}
	return int(ct.RowsAffected()), nil
}

func (r *subscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `
SELECT plan_id, COUNT(*)
  FROM subscriptions
 WHERE status IN ('active','trialing')
 GROUP BY plan_id;`
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
	m := make(map[string]int)
	for rows.Next() {
		var planID string
		var c int
		if err := rows.Scan(&planID, &c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		m[planID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *subscriptionRepo) FindExpiring(ctx context.Context, tx repository.Tx, withinDays int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status IN ('active','trialing')
   AND end_date > NOW()
   AND end_date <= NOW() + ($1::int * INTERVAL '1 day')
 ORDER BY end_date ASC;`
	return r.queryMany(ctx, tx, q, withinDays)
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var cycle, status string
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &cycle, &status, &s.StartDate, &s.EndDate,
		&s.TrialEndDate, &s.NextBillingDate, &s.ProcessorSubscriptionID, &s.ProcessorPriceID,
		&s.CancelAtPeriodEnd, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.BillingCycle = model.BillingCycle(cycle)
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

// lockKey folds a user id into the int64 advisory lock keyspace.
func lockKey(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64())
}
