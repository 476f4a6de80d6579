package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrForbidden         = errors.New("operation requires administrator role")
	ErrAlreadyProcessed  = errors.New("payment already processed")
	ErrInvalidTransition = errors.New("illegal payment status transition")
	ErrUpstreamPayment   = errors.New("payment processor call failed")
	ErrProcessorDisabled = errors.New("payment processor is not configured")

	// Coupon validation failures; one sentinel per rule so the boundary can
	// report expired / limit-reached / plan-mismatch / below-minimum distinctly.
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrCouponExpired      = errors.New("coupon has expired or is not yet valid")
	ErrCouponUsageLimit   = errors.New("coupon usage limit reached")
	ErrCouponPlanMismatch = errors.New("coupon not applicable to this plan")
	ErrCouponMinAmount    = errors.New("purchase amount below coupon minimum")

	// Infra-level errors surfaced by repositories.
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
