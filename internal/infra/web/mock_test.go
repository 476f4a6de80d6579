//go:build !integration

package web

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/config"
	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/usecase"
)

// --- Mock use cases (hex ports consumed by the server) ---

type mockCheckoutUC struct {
	InitiateFunc func(ctx context.Context, userID, planID string, cycle model.BillingCycle, opts usecase.CheckoutOptions) (*usecase.CheckoutResult, error)
}

var _ usecase.CheckoutUseCase = (*mockCheckoutUC)(nil)

func (m *mockCheckoutUC) Initiate(ctx context.Context, userID, planID string, cycle model.BillingCycle, opts usecase.CheckoutOptions) (*usecase.CheckoutResult, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, userID, planID, cycle, opts)
	}
	return nil, domain.ErrNotFound
}

type mockPaymentUC struct {
	ApproveFunc    func(ctx context.Context, actor *model.User, paymentID string) (*model.Payment, error)
	ListByUserFunc func(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) Approve(ctx context.Context, actor *model.User, paymentID string) (*model.Payment, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, actor, paymentID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockPaymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}
func (m *mockPaymentUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return nil, nil
}
func (m *mockPaymentUC) SumByPeriod(ctx context.Context, period string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type mockSubscriptionUC struct {
	CancelFunc           func(ctx context.Context, actor *model.User, subscriptionID string) (*model.Subscription, error)
	UpgradeFunc          func(ctx context.Context, actor *model.User, subscriptionID, newPlanID string) (*model.Subscription, error)
	GetActiveForUserFunc func(ctx context.Context, userID string) (*model.Subscription, error)
	ListByUserFunc       func(ctx context.Context, userID string) ([]*model.Subscription, error)
}

var _ usecase.SubscriptionUseCase = (*mockSubscriptionUC)(nil)

func (m *mockSubscriptionUC) Cancel(ctx context.Context, actor *model.User, subscriptionID string) (*model.Subscription, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, actor, subscriptionID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockSubscriptionUC) Upgrade(ctx context.Context, actor *model.User, subscriptionID, newPlanID string) (*model.Subscription, error) {
	if m.UpgradeFunc != nil {
		return m.UpgradeFunc(ctx, actor, subscriptionID, newPlanID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockSubscriptionUC) GetActiveForUser(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.GetActiveForUserFunc != nil {
		return m.GetActiveForUserFunc(ctx, userID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockSubscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}
func (m *mockSubscriptionUC) FinishExpired(ctx context.Context) (int, error) { return 0, nil }
func (m *mockSubscriptionUC) FindExpiring(ctx context.Context, withinDays int) ([]*model.Subscription, error) {
	return nil, nil
}

type mockPlanUC struct {
	ListFunc func(ctx context.Context) ([]*model.Plan, error)
	GetFunc  func(ctx context.Context, id string) (*model.Plan, error)
}

var _ usecase.PlanUseCase = (*mockPlanUC)(nil)

func (m *mockPlanUC) Create(ctx context.Context, actor *model.User, plan *model.Plan) error {
	return nil
}
func (m *mockPlanUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockPlanUC) List(ctx context.Context) ([]*model.Plan, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}
func (m *mockPlanUC) ListAll(ctx context.Context, actor *model.User) ([]*model.Plan, error) {
	return nil, nil
}
func (m *mockPlanUC) Update(ctx context.Context, actor *model.User, plan *model.Plan) error {
	return nil
}
func (m *mockPlanUC) Deactivate(ctx context.Context, actor *model.User, id string) error {
	return nil
}

type mockCouponUC struct {
	ValidateFunc func(ctx context.Context, code string, amount decimal.Decimal, planID string) (*usecase.CouponQuote, error)
	ApplyFunc    func(ctx context.Context, code string) (*model.Coupon, error)
}

var _ usecase.CouponUseCase = (*mockCouponUC)(nil)

func (m *mockCouponUC) Validate(ctx context.Context, code string, amount decimal.Decimal, planID string) (*usecase.CouponQuote, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, code, amount, planID)
	}
	return nil, domain.ErrNotFound
}
func (m *mockCouponUC) Apply(ctx context.Context, code string) (*model.Coupon, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, code)
	}
	return nil, domain.ErrNotFound
}
func (m *mockCouponUC) Create(ctx context.Context, actor *model.User, coupon *model.Coupon) error {
	return nil
}
func (m *mockCouponUC) Update(ctx context.Context, actor *model.User, coupon *model.Coupon) error {
	return nil
}
func (m *mockCouponUC) Deactivate(ctx context.Context, actor *model.User, id string) error {
	return nil
}
func (m *mockCouponUC) List(ctx context.Context) ([]*model.Coupon, error) { return nil, nil }

type mockStatsUC struct {
	DashboardFunc func(ctx context.Context, actor *model.User) (*usecase.DashboardStats, error)
}

var _ usecase.StatsUseCase = (*mockStatsUC)(nil)

func (m *mockStatsUC) Dashboard(ctx context.Context, actor *model.User) (*usecase.DashboardStats, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx, actor)
	}
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return &usecase.DashboardStats{PlanDistribution: map[string]int{}}, nil
}

type mockNotificationUC struct {
	ListForUserFunc func(ctx context.Context, actor *model.User, unreadOnly bool) ([]*model.Notification, error)
}

var _ usecase.NotificationUseCase = (*mockNotificationUC)(nil)

func (m *mockNotificationUC) ListForUser(ctx context.Context, actor *model.User, unreadOnly bool) ([]*model.Notification, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, actor, unreadOnly)
	}
	return nil, nil
}
func (m *mockNotificationUC) MarkRead(ctx context.Context, actor *model.User, id string) error {
	return nil
}

type mockWebhookUC struct {
	HandleEventFunc func(ctx context.Context, ev adapter.Event) error
	Handled         []adapter.Event
}

var _ usecase.WebhookUseCase = (*mockWebhookUC)(nil)

func (m *mockWebhookUC) HandleEvent(ctx context.Context, ev adapter.Event) error {
	m.Handled = append(m.Handled, ev)
	if m.HandleEventFunc != nil {
		return m.HandleEventFunc(ctx, ev)
	}
	return nil
}

// mockParser stands in for the Stripe webhook verifier.
type mockParser struct {
	ParseEventFunc func(payload []byte, sigHeader string) (adapter.Event, error)
}

func (m *mockParser) ParseEvent(payload []byte, sigHeader string) (adapter.Event, error) {
	if m.ParseEventFunc != nil {
		return m.ParseEventFunc(payload, sigHeader)
	}
	return adapter.Event{}, errors.New("invalid signature")
}

// --- Test server assembly ---

type serverMocks struct {
	checkout *mockCheckoutUC
	payment  *mockPaymentUC
	sub      *mockSubscriptionUC
	plan     *mockPlanUC
	coupon   *mockCouponUC
	stats    *mockStatsUC
	note     *mockNotificationUC
	webhook  *mockWebhookUC
	parser   *mockParser
}

func newTestServer() (*Server, *serverMocks) {
	m := &serverMocks{
		checkout: &mockCheckoutUC{},
		payment:  &mockPaymentUC{},
		sub:      &mockSubscriptionUC{},
		plan:     &mockPlanUC{},
		coupon:   &mockCouponUC{},
		stats:    &mockStatsUC{},
		note:     &mockNotificationUC{},
		webhook:  &mockWebhookUC{},
		parser:   &mockParser{},
	}
	auth := NewAuthManager(config.AuthConfig{JWTSecret: "test-secret", SessionTTL: time.Hour})
	logger := zerolog.Nop()
	srv := NewServer(m.checkout, m.payment, m.sub, m.plan, m.coupon, m.stats, m.note, m.webhook, m.parser, auth, &logger)
	return srv, m
}
