//go:build !integration

package usecase_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{plans: make(map[string]*model.Plan)}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.plans[plan.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsActive = false
	return nil
}

// ---- Mock CouponRepository ----

type MockCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*model.Coupon // keyed by ID

	RedeemOnceFunc func(ctx context.Context, tx repository.Tx, code string) error
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{coupons: make(map[string]*model.Coupon)}
}

func (m *MockCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *MockCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(code)
	for _, c := range m.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCouponRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsActive = false
	return nil
}

func (m *MockCouponRepo) RedeemOnce(ctx context.Context, tx repository.Tx, code string) error {
	if m.RedeemOnceFunc != nil {
		return m.RedeemOnceFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(code)
	for _, c := range m.coupons {
		if c.Code != code {
			continue
		}
		if !c.IsActive {
			return domain.ErrCouponInactive
		}
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			return domain.ErrCouponUsageLimit
		}
		c.UsedCount++
		return nil
	}
	return domain.ErrNotFound
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription

	SaveFunc     func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	LockUserFunc func(ctx context.Context, tx repository.Tx, userID string) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindEntitledByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status.Entitled() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindByProcessorID(ctx context.Context, tx repository.Tx, processorSubID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.ProcessorSubscriptionID != nil && *s.ProcessorSubscriptionID == processorSubID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CancelEntitledByUser(ctx context.Context, tx repository.Tx, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status.Entitled() {
			s.Status = model.SubscriptionStatusCanceled
			canceled := at
			s.CanceledAt = &canceled
			s.UpdatedAt = at
		}
	}
	return nil
}

func (m *MockSubscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, tx, userID)
	}
	return nil
}

func (m *MockSubscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if s.ProcessorSubscriptionID == nil && !s.Status.Terminal() && s.Status != model.SubscriptionStatusExpired && !s.EndDate.After(now) {
			s.Status = model.SubscriptionStatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, s := range m.subs {
		if s.Status.Entitled() {
			out[s.PlanID]++
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) FindExpiring(ctx context.Context, tx repository.Tx, withinDays int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, withinDays)
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.Status.Entitled() && s.EndDate.After(time.Now()) && !s.EndDate.After(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// entitledCount is a test helper, not part of the repository port.
func (m *MockSubscriptionRepo) entitledCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if s.UserID == userID && s.Status.Entitled() {
			n++
		}
	}
	return n
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByProcessorInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProcessorInvoiceID != nil && *p.ProcessorInvoiceID == invoiceID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) UpsertByProcessorInvoiceID(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p.ProcessorInvoiceID == nil {
		return domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.payments {
		if existing.ProcessorInvoiceID != nil && *existing.ProcessorInvoiceID == *p.ProcessorInvoiceID {
			cp := *p
			cp.ID = id
			m.payments[id] = &cp
			return nil
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.PaidAt = paidAt
	return nil
}

func (m *MockPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusSucceeded {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (m *MockPaymentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *MockPaymentRepo) all() []*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// ---- Mock NotificationRepository ----

type MockNotificationRepo struct {
	mu    sync.Mutex
	Saved []*model.Notification

	SaveFunc func(ctx context.Context, tx repository.Tx, n *model.Notification) error
}

var _ repository.NotificationRepository = (*MockNotificationRepo)(nil)

func NewMockNotificationRepo() *MockNotificationRepo {
	return &MockNotificationRepo{}
}

func (m *MockNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, n)
	return nil
}

func (m *MockNotificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, unreadOnly bool) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.Saved {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockNotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.Saved {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[string]*model.User)}
}

func (m *MockUserRepo) add(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) SetProcessorCustomerID(ctx context.Context, tx repository.Tx, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.ProcessorCustomerID = &customerID
	return nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentProcessor ----

type MockProcessor struct {
	EnabledVal bool

	EnsureCustomerFunc        func(ctx context.Context, c adapter.Customer) (string, error)
	CreateCheckoutSessionFunc func(ctx context.Context, p adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error)
	RetrieveSubscriptionFunc  func(ctx context.Context, id string) (*adapter.ProcessorSubscription, error)
	CancelAtPeriodEndFunc     func(ctx context.Context, id string) error
	SwapPriceFunc             func(ctx context.Context, id, newPriceID string) error

	Calls struct {
		CancelAtPeriodEnd []string
		SwapPrice         []string
	}
}

var _ adapter.PaymentProcessor = (*MockProcessor)(nil)

func (m *MockProcessor) Name() string  { return "mock" }
func (m *MockProcessor) Enabled() bool { return m.EnabledVal }

func (m *MockProcessor) EnsureCustomer(ctx context.Context, c adapter.Customer) (string, error) {
	if m.EnsureCustomerFunc != nil {
		return m.EnsureCustomerFunc(ctx, c)
	}
	return "cus_test", nil
}

func (m *MockProcessor) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutSessionParams) (*adapter.CheckoutSession, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, p)
	}
	return &adapter.CheckoutSession{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

func (m *MockProcessor) RetrieveSubscription(ctx context.Context, id string) (*adapter.ProcessorSubscription, error) {
	if m.RetrieveSubscriptionFunc != nil {
		return m.RetrieveSubscriptionFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockProcessor) CancelAtPeriodEnd(ctx context.Context, id string) error {
	m.Calls.CancelAtPeriodEnd = append(m.Calls.CancelAtPeriodEnd, id)
	if m.CancelAtPeriodEndFunc != nil {
		return m.CancelAtPeriodEndFunc(ctx, id)
	}
	return nil
}

func (m *MockProcessor) SwapPrice(ctx context.Context, id, newPriceID string) error {
	m.Calls.SwapPrice = append(m.Calls.SwapPrice, newPriceID)
	if m.SwapPriceFunc != nil {
		return m.SwapPriceFunc(ctx, id, newPriceID)
	}
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the callback without a real transaction by default. Assign
// WithTxFunc to exercise rollback behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}
