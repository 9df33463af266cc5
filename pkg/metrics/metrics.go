package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 指标
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// 上游 (商城后端) 调用
	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_upstream_duration_seconds",
			Help:    "Storefront backend call latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "result"},
	)

	// 结账业务
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_order_submissions_total",
			Help: "Order submissions by result",
		},
		[]string{"result"},
	)
	pollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_poll_attempts_total",
			Help: "Poll ticks by poller and result",
		},
		[]string{"poller", "result"},
	)
	paymentOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_outcomes_total",
			Help: "Payment poller outcomes",
		},
		[]string{"poller", "outcome"},
	)
	priceFeedDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_price_feed_degraded_total",
			Help: "Price feed failures that degraded to the next precedence tier",
		},
		[]string{"feed"},
	)
	activePollSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_active_poll_sessions",
			Help: "Payment poll sessions currently running",
		},
	)
)

// ObserveHTTP 记录一次 HTTP 请求
func ObserveHTTP(method, endpoint, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// ObserveUpstream 记录一次后端调用
func ObserveUpstream(operation string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	upstreamDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

func IncSubmission(result string) {
	submissionsTotal.WithLabelValues(result).Inc()
}

func IncPollAttempt(poller, result string) {
	pollAttemptsTotal.WithLabelValues(poller, result).Inc()
}

func IncPaymentOutcome(poller, outcome string) {
	paymentOutcomesTotal.WithLabelValues(poller, outcome).Inc()
}

func IncFeedDegraded(feed string) {
	priceFeedDegradedTotal.WithLabelValues(feed).Inc()
}

func PollSessionStarted() { activePollSessions.Inc() }
func PollSessionStopped() { activePollSessions.Dec() }

// Handler /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
