package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP surface
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"handler", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"handler", "method"},
	)

	// Webhook ingestion
	WebhookReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_received_total", Help: "Webhook ingestion results."},
		[]string{"result"}, // stored | invalid_signature | malformed | error
	)
	WebhookProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_processed_total", Help: "Webhook processing outcomes by event type."},
		[]string{"event_type", "outcome"}, // ok | swallowed | failed | exhausted
	)
	WebhookRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_retries_total", Help: "Retries scheduled for failed webhooks."},
	)
	SweepDue = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_sweep_due_events",
			Help:    "Number of due events picked up per sweep.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0,10,...,100
		},
	)

	// Outbound dispatch
	SendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_send_total", Help: "Provider send outcomes."},
		[]string{"outcome"}, // sent | limit_exceeded | provider_error | error
	)
	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provider_send_duration_seconds",
			Help:    "Provider send latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)
)

// MustRegister installs default collectors plus ours on the global registry.
func MustRegister() {
	prometheus.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration,
		WebhookReceived, WebhookProcessed, WebhookRetries, SweepDue,
		SendTotal, SendDuration,
	)
}
