package repository

import (
	"context"

	"saas-subscription-billing/internal/domain/model"
)

// PlanRepository is the port for plan persistence. Plans are read-mostly and
// the FindByID/ListAll paths sit behind a cache decorator in production.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	// Deactivate soft-deletes a plan; existing subscriptions keep referencing it.
	Deactivate(ctx context.Context, tx Tx, id string) error
}
