package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
	"saas-subscription-billing/internal/infra/metrics"
	red "saas-subscription-billing/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches the read-mostly plan catalog in Redis. Writes
// invalidate both the per-plan key and the full-list key.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan", "hit")
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(plan); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const key = "plans:all"
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan_list", "hit")
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if bytes, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return plans, nil
}

func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("plan:%s", plan.ID), "plans:all")
	return d.inner.Save(ctx, tx, plan)
}

func (d *planRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("plan:%s", id), "plans:all")
	return d.inner.Deactivate(ctx, tx, id)
}
