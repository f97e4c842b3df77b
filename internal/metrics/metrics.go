package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	updatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finbot",
			Name:      "updates_total",
			Help:      "Inbound Telegram updates processed.",
		},
	)

	updateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "finbot",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling a single update.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbot",
			Name:      "requests_total",
			Help:      "Financial requests by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	broadcastSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbot",
			Name:      "broadcast_sends_total",
			Help:      "Broadcast deliveries by result.",
		},
		[]string{"result"},
	)

	errorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finbot",
			Name:      "errors_total",
			Help:      "Handler errors and recovered panics.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbot",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(updatesTotal, updateDuration, requestsTotal, broadcastSends, errorsTotal, httpRequests)
	})
}

// IncUpdates counts one processed update.
func IncUpdates() {
	updatesTotal.Inc()
}

// ObserveUpdate records handling latency in seconds.
func ObserveUpdate(seconds float64) {
	updateDuration.Observe(seconds)
}

// IncRequest counts a request lifecycle event.
func IncRequest(kind, status string) {
	requestsTotal.WithLabelValues(kind, status).Inc()
}

// IncBroadcastSend counts one delivery attempt result ("ok" or "failed").
func IncBroadcastSend(result string) {
	broadcastSends.WithLabelValues(result).Inc()
}

// IncErrors counts one handler error.
func IncErrors() {
	errorsTotal.Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
