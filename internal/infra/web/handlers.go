package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/domain"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/infra/metrics"
	"saas-subscription-billing/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses. The coupon rule
// errors get 422 so clients can distinguish "bad request shape" from "valid
// request, inapplicable coupon".
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCouponInactive),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponUsageLimit),
		errors.Is(err, domain.ErrCouponPlanMismatch),
		errors.Is(err, domain.ErrCouponMinAmount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUpstreamPayment), errors.Is(err, domain.ErrProcessorDisabled):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ----- Checkout -----

type checkoutRequest struct {
	PlanID         string `json:"plan_id"`
	BillingCycle   string `json:"billing_cycle"`
	CouponCode     string `json:"coupon_code,omitempty"`
	ManualMethod   string `json:"manual_method,omitempty"`
	TransactionRef string `json:"transaction_ref,omitempty"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.checkoutUC.Initiate(r.Context(), user.ID, req.PlanID, model.BillingCycle(req.BillingCycle), usecase.CheckoutOptions{
		ManualMethod:   model.ManualPaymentMethod(req.ManualMethod),
		TransactionRef: req.TransactionRef,
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	metrics.IncSubscriptionEvent("checkout")
	if res.SessionURL != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"session_id":  res.SessionID,
			"session_url": res.SessionURL,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"subscription": res.Subscription,
		"message":      res.Message,
	})
}

// ----- Subscriptions -----

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	subs, err := s.subUC.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	sub, err := s.subUC.GetActiveForUser(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	sub, err := s.subUC.Cancel(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncSubscriptionEvent("cancel")
	writeJSON(w, http.StatusOK, sub)
}

type upgradeRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) handleUpgradeSubscription(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := s.subUC.Upgrade(r.Context(), user, chi.URLParam(r, "id"), req.PlanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncSubscriptionEvent("upgrade")
	writeJSON(w, http.StatusOK, sub)
}

// ----- Payments -----

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := s.paymentUC.ListByUser(r.Context(), user.ID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleApprovePayment(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	payment, err := s.paymentUC.Approve(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncPayment(string(payment.Status), string(payment.Method))
	amount, _ := payment.Amount.Float64()
	metrics.AddPaymentRevenue(payment.Currency, amount)
	writeJSON(w, http.StatusOK, payment)
}

// ----- Coupons -----

type validateCouponRequest struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	PlanID string `json:"plan_id,omitempty"`
}

func (s *Server) handleValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	quote, err := s.couponUC.Validate(r.Context(), req.Code, amount, req.PlanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":            quote.Coupon.Code,
		"discount_amount": quote.DiscountAmount,
		"final_amount":    quote.FinalAmount,
	})
}

func (s *Server) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := s.couponUC.Apply(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":       coupon.Code,
		"used_count": coupon.UsedCount,
	})
}

type couponRequest struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	DiscountType      string   `json:"discount_type"`
	DiscountValue     string   `json:"discount_value"`
	MinAmount         string   `json:"min_amount,omitempty"`
	MaxDiscount       *string  `json:"max_discount,omitempty"`
	ValidFrom         string   `json:"valid_from"`
	ValidUntil        string   `json:"valid_until"`
	UsageLimit        *int     `json:"usage_limit,omitempty"`
	ApplicablePlanIDs []string `json:"applicable_plan_ids,omitempty"`
}

func (r couponRequest) toModel(id string) (*model.Coupon, error) {
	value, err := decimal.NewFromString(r.DiscountValue)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	validFrom, err := parseTime(r.ValidFrom)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	validUntil, err := parseTime(r.ValidUntil)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}

	c, err := model.NewCoupon(id, r.Code, r.Name, model.DiscountType(r.DiscountType), value, validFrom, validUntil)
	if err != nil {
		return nil, err
	}
	c.Description = r.Description
	c.UsageLimit = r.UsageLimit
	c.ApplicablePlanIDs = r.ApplicablePlanIDs
	if r.MinAmount != "" {
		if c.MinAmount, err = decimal.NewFromString(r.MinAmount); err != nil {
			return nil, domain.ErrInvalidArgument
		}
	}
	if r.MaxDiscount != nil {
		d, err := decimal.NewFromString(*r.MaxDiscount)
		if err != nil {
			return nil, domain.ErrInvalidArgument
		}
		c.MaxDiscount = &d
	}
	return c, nil
}

func (s *Server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coupon, err := req.toModel(uuid.NewString())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.couponUC.Create(r.Context(), user, coupon); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

func (s *Server) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.couponUC.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (s *Server) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coupon, err := req.toModel(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.couponUC.Update(r.Context(), user, coupon); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (s *Server) handleDeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := s.couponUC.Deactivate(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// ----- Plans -----

type planRequest struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	PriceMonthly            string   `json:"price_monthly"`
	PriceYearly             string   `json:"price_yearly"`
	Features                []string `json:"features,omitempty"`
	MaxUsers                int      `json:"max_users"`
	MaxStorageGB            int      `json:"max_storage_gb"`
	TrialDays               int      `json:"trial_days"`
	ProcessorPriceIDMonthly *string  `json:"processor_price_id_monthly,omitempty"`
	ProcessorPriceIDYearly  *string  `json:"processor_price_id_yearly,omitempty"`
}

func (r planRequest) toModel(id string) (*model.Plan, error) {
	monthly, err := decimal.NewFromString(r.PriceMonthly)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	yearly, err := decimal.NewFromString(r.PriceYearly)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	p, err := model.NewPlan(id, r.Name, monthly, yearly, r.TrialDays)
	if err != nil {
		return nil, err
	}
	p.Description = r.Description
	p.Features = r.Features
	if r.MaxUsers != 0 {
		p.MaxUsers = r.MaxUsers
	}
	if r.MaxStorageGB != 0 {
		p.MaxStorageGB = r.MaxStorageGB
	}
	p.ProcessorPriceIDMonthly = r.ProcessorPriceIDMonthly
	p.ProcessorPriceIDYearly = r.ProcessorPriceIDYearly
	return p, nil
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleListAllPlans(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	plans, err := s.planUC.ListAll(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	plan, err := req.toModel(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.planUC.Create(r.Context(), user, plan); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := req.toModel(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.planUC.Update(r.Context(), user, plan); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := s.planUC.Deactivate(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- Stats -----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	stats, err := s.statsUC.Dashboard(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_users":          stats.TotalUsers,
		"active_subscriptions": stats.ActiveSubscriptions,
		"plan_distribution":    stats.PlanDistribution,
		"revenue": map[string]decimal.Decimal{
			"week":  stats.RevenueWeek,
			"month": stats.RevenueMonth,
			"year":  stats.RevenueYear,
		},
	})
}

// ----- Notifications -----

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notes, err := s.noteUC.ListForUser(r.Context(), user, unreadOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := s.noteUC.MarkRead(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
