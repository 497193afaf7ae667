package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// DonationsCreated counts pending donations recorded after a successful
	// provider call.
	DonationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "helppaw",
		Name:      "donations_created_total",
		Help:      "Donations created at the payment provider.",
	})

	// WebhookEvents counts provider notifications by event and outcome.
	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helppaw",
		Name:      "webhook_events_total",
		Help:      "Payment webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})

	// ProviderRequests counts outbound payment provider calls.
	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helppaw",
		Name:      "provider_requests_total",
		Help:      "Outbound payment provider requests by operation and outcome.",
	}, []string{"op", "outcome"})
)

func init() {
	prometheus.MustRegister(DonationsCreated, WebhookEvents, ProviderRequests)
}
