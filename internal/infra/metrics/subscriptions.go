package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionEventsTotal,
	)
}

var subscriptionEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_events_total",
		Help: "Subscription lifecycle events by kind (checkout/cancel/upgrade/expire).",
	},
	[]string{"event"},
)

func IncSubscriptionEvent(event string) {
	subscriptionEventsTotal.WithLabelValues(norm(event)).Inc()
}
