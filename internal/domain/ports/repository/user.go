package repository

import (
	"context"

	"saas-subscription-billing/internal/domain/model"
)

// UserRepository exposes the slice of user state the billing core touches.
type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// SetProcessorCustomerID persists the lazily-created processor customer
	// reference.
	SetProcessorCustomerID(ctx context.Context, tx Tx, userID, customerID string) error
	CountUsers(ctx context.Context, tx Tx) (int, error)
}
