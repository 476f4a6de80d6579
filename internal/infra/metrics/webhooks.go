package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookHandleSeconds,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook events by kind and outcome (ok/invalid_signature/bad_payload).",
		},
		[]string{"kind", "outcome"},
	)

	webhookHandleSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_handle_seconds",
			Help:    "Webhook handling latency distribution in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)
)

func IncWebhookEvent(kind, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func ObserveWebhookHandle(kind string, seconds float64) {
	webhookHandleSeconds.WithLabelValues(norm(kind)).Observe(seconds)
}
