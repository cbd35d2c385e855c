package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessChecksTotal counts access checks by result (granted/denied/anonymous).
	AccessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "access_checks_total",
		Help:      "Total modpack access checks by result.",
	}, []string{"result"})

	// AcquisitionsTotal counts acquisition attempts by gating method and outcome.
	AcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "acquisitions_total",
		Help:      "Total acquisition attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// PaymentTransitionsTotal counts applied payment status changes.
	PaymentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "payment_transitions_total",
		Help:      "Payment status transitions by gateway and target status.",
	}, []string{"gateway", "status"})

	// WebhookRequestsTotal counts gateway webhook requests by gateway and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "webhook_requests_total",
		Help:      "Total gateway webhook requests by gateway and HTTP status.",
	}, []string{"gateway", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "webhook_duration_seconds",
		Help:      "Gateway webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"gateway"})

	// RealtimeClients tracks connected payment websocket clients.
	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "modpack",
		Subsystem: "explore",
		Name:      "realtime_clients",
		Help:      "Connected payment event websocket clients.",
	})
)
