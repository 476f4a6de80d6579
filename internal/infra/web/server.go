package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"saas-subscription-billing/internal/domain/ports/adapter"
	"saas-subscription-billing/internal/usecase"
)

// WebhookParser verifies and translates an inbound processor webhook payload.
// Implemented by the Stripe adapter.
type WebhookParser interface {
	ParseEvent(payload []byte, sigHeader string) (adapter.Event, error)
}

type Server struct {
	checkoutUC usecase.CheckoutUseCase
	paymentUC  usecase.PaymentUseCase
	subUC      usecase.SubscriptionUseCase
	planUC     usecase.PlanUseCase
	couponUC   usecase.CouponUseCase
	statsUC    usecase.StatsUseCase
	noteUC     usecase.NotificationUseCase
	webhookUC  usecase.WebhookUseCase

	parser WebhookParser
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	paymentUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	planUC usecase.PlanUseCase,
	couponUC usecase.CouponUseCase,
	statsUC usecase.StatsUseCase,
	noteUC usecase.NotificationUseCase,
	webhookUC usecase.WebhookUseCase,
	parser WebhookParser,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC: checkoutUC,
		paymentUC:  paymentUC,
		subUC:      subUC,
		planUC:     planUC,
		couponUC:   couponUC,
		statsUC:    statsUC,
		noteUC:     noteUC,
		webhookUC:  webhookUC,
		parser:     parser,
		auth:       auth,
		log:        logger,
	}
}

// Routes builds the full router. Webhooks and the plan catalog are public;
// everything else requires a session, with the admin subtree also requiring
// the admin role.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/stripe", s.handleStripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)
		r.Get("/plans/{id}", s.handleGetPlan)
		r.Post("/coupons/validate", s.handleValidateCoupon)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Post("/checkout", s.handleCheckout)
			r.Post("/coupons/{code}/apply", s.handleApplyCoupon)

			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Get("/subscriptions/current", s.handleCurrentSubscription)
			r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
			r.Post("/subscriptions/{id}/upgrade", s.handleUpgradeSubscription)

			r.Get("/payments", s.handleListPayments)

			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireUser, s.requireAdmin)

			r.Get("/stats", s.handleStats)
			r.Post("/payments/{id}/approve", s.handleApprovePayment)

			r.Post("/plans", s.handleCreatePlan)
			r.Get("/plans", s.handleListAllPlans)
			r.Put("/plans/{id}", s.handleUpdatePlan)
			r.Delete("/plans/{id}", s.handleDeactivatePlan)

			r.Post("/coupons", s.handleCreateCoupon)
			r.Get("/coupons", s.handleListCoupons)
			r.Put("/coupons/{id}", s.handleUpdateCoupon)
			r.Delete("/coupons/{id}", s.handleDeactivateCoupon)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userFromClaims(claims))))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		if u == nil || !u.Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
