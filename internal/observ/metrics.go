package observ

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Write path.
var (
	MessagesAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubchat_messages_accepted_total",
			Help: "Messages persisted by the write path, by kind (top_level, reply)",
		},
		[]string{"kind"},
	)

	MessagesRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubchat_messages_refused_total",
			Help: "Messages refused before persistence, by error kind",
		},
		[]string{"reason"},
	)

	ActivityRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_activity_retries_total",
			Help: "Retries of the thread counter update after a message was persisted",
		},
	)

	ActivityDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_activity_deferred_total",
			Help: "Messages whose counter update was left for the reconciler",
		},
	)

	ActivityReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_activity_reconciled_total",
			Help: "Pending counter updates applied by the reconciler",
		},
	)
)

// Real-time fan-out.
var (
	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ubchat_realtime_sessions",
			Help: "Connected real-time sessions",
		},
	)

	RealtimeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ubchat_realtime_subscriptions",
			Help: "Sessions currently subscribed to a thread",
		},
	)

	RealtimeDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_realtime_events_enqueued_total",
			Help: "Events handed to a subscriber's outbound queue",
		},
	)

	RealtimeSlowDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_realtime_slow_sessions_dropped_total",
			Help: "Sessions disconnected because their outbound queue was full",
		},
	)

	NotifyQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ubchat_notify_queue_dropped_total",
			Help: "Events dropped because the notifier queue was full",
		},
	)
)

// GinMetrics records request count, latency and in-flight requests. The
// route template is used as the label to keep cardinality bounded.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
