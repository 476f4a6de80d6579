package web

import (
	"io"
	"net/http"
	"time"

	"saas-subscription-billing/internal/infra/metrics"
)

// Reads are capped; Stripe event payloads stay well under this.
const maxWebhookBody = 1 << 20

// handleStripeWebhook verifies the signature, translates the event, and hands
// it to the reconciler. The response is 200 whenever the event was accepted,
// even if a handler failed internally; the processor's redelivery only helps
// for transport-level failures, which the signature and decode checks cover.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil {
		// No processor configured; nothing should be delivering here.
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookEvent("unknown", "bad_payload")
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ev, err := s.parser.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		metrics.IncWebhookEvent("unknown", "invalid_signature")
		s.log.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	start := time.Now()
	_ = s.webhookUC.HandleEvent(r.Context(), ev)
	metrics.ObserveWebhookHandle(string(ev.Kind), time.Since(start).Seconds())
	metrics.IncWebhookEvent(string(ev.Kind), "ok")

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
