package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Routing metrics
	messagesRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlet_messages_routed_total",
			Help: "Total number of messages routed to agents",
		},
		[]string{"agent", "kind", "status"},
	)

	messagesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlet_messages_ingested_total",
			Help: "Total number of input lines ingested",
		},
		[]string{"status"},
	)

	// Scheduling metrics
	scheduleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ringlet_schedule_duration_seconds",
			Help:    "Duration of one scheduling quantum in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	schedulesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ringlet_schedules_total",
			Help: "Total number of scheduling quanta granted",
		},
	)

	// Agent metrics
	registeredAgents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ringlet_registered_agents",
			Help: "Number of agents currently registered",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ringlet_agent_queue_depth",
			Help: "Number of messages waiting in an agent's queue",
		},
		[]string{"agent"},
	)

	handlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlet_handler_errors_total",
			Help: "Total number of handler errors, by agent",
		},
		[]string{"agent"},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus metrics. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			messagesRoutedTotal,
			messagesIngestedTotal,
			scheduleDuration,
			schedulesTotal,
			registeredAgents,
			queueDepth,
			handlerErrorsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordRoute records the outcome of routing one message.
func RecordRoute(agent, kind, status string) {
	messagesRoutedTotal.WithLabelValues(agent, kind, status).Inc()
}

// RecordIngest records the outcome of decoding one input line.
func RecordIngest(status string) {
	messagesIngestedTotal.WithLabelValues(status).Inc()
}

// RecordSchedule records one scheduling quantum.
func RecordSchedule(duration time.Duration) {
	schedulesTotal.Inc()
	scheduleDuration.Observe(duration.Seconds())
}

// SetRegisteredAgents sets the registered agents gauge.
func SetRegisteredAgents(count int) {
	registeredAgents.Set(float64(count))
}

// SetQueueDepth sets the queue depth gauge for one agent.
func SetQueueDepth(agent string, depth int) {
	queueDepth.WithLabelValues(agent).Set(float64(depth))
}

// AddHandlerErrors increments the handler error counter for one agent.
// Callers track snapshot deltas; counters only go up.
func AddHandlerErrors(agent string, delta uint64) {
	handlerErrorsTotal.WithLabelValues(agent).Add(float64(delta))
}
