// Package metrics exposes Prometheus collectors for the prospector service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal            *prometheus.CounterVec
	crawlLeadsTotal            *prometheus.CounterVec
	crawlThrottleSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	connectSendsTotal          *prometheus.CounterVec
	connectSendsToday          prometheus.Gauge
	connectQueueDepth          *prometheus.GaugeVec
	coordinatorWaitSeconds     *prometheus.HistogramVec
	coordinatorHoldSeconds     *prometheus.HistogramVec
	sessionStatus              *prometheus.GaugeVec
	runsTotal                  *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_crawl_pages_total",
				Help: "Total number of result pages fetched, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		crawlLeadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_crawl_leads_total",
				Help: "Total number of lead records extracted, labeled by source.",
			},
			[]string{"source"},
		)

		crawlThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prospector_crawl_throttle_seconds",
				Help:    "Histogram of throttle waits before page requests.",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 4, 5, 10},
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		connectSendsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_connect_sends_total",
				Help: "Total number of connect attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		connectSendsToday = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "prospector_connect_sends_today",
				Help: "Connect requests sent during the current local day.",
			},
		)

		connectQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prospector_connect_queue_items",
				Help: "Connect queue rows, labeled by status.",
			},
			[]string{"status"},
		)

		coordinatorWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prospector_browser_wait_seconds",
				Help:    "Time spent waiting for the browser profile.",
				Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60, 180},
			},
			[]string{"operation"},
		)

		coordinatorHoldSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prospector_browser_hold_seconds",
				Help:    "Time the browser profile was held, labeled by operation.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"operation"},
		)

		sessionStatus = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prospector_session_status",
				Help: "Last observed session status; the current status is 1, others 0.",
			},
			[]string{"status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_runs_total",
				Help: "Total number of crawl runs finished, labeled by run type and status.",
			},
			[]string{"run_type", "status"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched result page.
func ObservePage(source, outcome string) {
	Init()
	crawlPagesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveLeads adds extracted lead records for a source.
func ObserveLeads(source string, n int) {
	Init()
	if n > 0 {
		crawlLeadsTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveThrottle records the duration of a throttle wait.
func ObserveThrottle(source string, duration time.Duration) {
	Init()
	crawlThrottleSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSend counts a connect attempt outcome ("sent" or "failed").
func ObserveSend(outcome string) {
	Init()
	connectSendsTotal.WithLabelValues(outcome).Inc()
}

// SetSendsToday publishes the re-derived daily send count.
func SetSendsToday(n int) {
	Init()
	connectSendsToday.Set(float64(n))
}

// SetQueueDepth publishes queue row counts.
func SetQueueDepth(pending, sent, failed int) {
	Init()
	connectQueueDepth.WithLabelValues("pending").Set(float64(pending))
	connectQueueDepth.WithLabelValues("sent").Set(float64(sent))
	connectQueueDepth.WithLabelValues("failed").Set(float64(failed))
}

// ObserveBrowserWait records how long an operation waited for the profile.
func ObserveBrowserWait(operation string, duration time.Duration) {
	Init()
	coordinatorWaitSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveBrowserHold records how long an operation held the profile.
func ObserveBrowserHold(operation string, duration time.Duration) {
	Init()
	coordinatorHoldSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetSessionStatus marks status as the current session state.
func SetSessionStatus(status string) {
	Init()
	for _, s := range []string{"connected", "expired", "unknown"} {
		v := 0.0
		if s == status {
			v = 1
		}
		sessionStatus.WithLabelValues(s).Set(v)
	}
}

// ObserveRun counts a finished crawl run.
func ObserveRun(runType, status string) {
	Init()
	runsTotal.WithLabelValues(runType, status).Inc()
}
