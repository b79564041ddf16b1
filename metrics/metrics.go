package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/resilience"
)

const namespace = "exchange_rates"

// Metrics collectors of the rate pipeline
type Metrics struct {
	// feed calls by outcome, one per attempt
	FeedRequestsTotal       *prometheus.CounterVec
	FeedRequestDuration     *prometheus.HistogramVec
	FeedRetriesTotal        prometheus.Counter
	FeedSkippedRecordsTotal *prometheus.CounterVec

	CacheRequestsTotal *prometheus.CounterVec

	// served HTTP requests by route, method and status code
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// BreakerState 0 closed, 1 open, 2 half-open
	BreakerState            prometheus.Gauge
	BreakerTransitionsTotal *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FeedRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "Calls to the rate feed by outcome.",
		}, []string{"outcome"}),
		FeedRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "request_duration_seconds",
			Help:      "Duration of calls to the rate feed.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		FeedRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "retries_total",
			Help:      "Retried calls to the rate feed.",
		}),
		FeedSkippedRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "skipped_records_total",
			Help:      "Feed records dropped while parsing, by reason.",
		}, []string{"reason"}),
		CacheRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache operations by result: hit, miss, error or stored.",
		}, []string{"result"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by handler, method and status code.",
		}, []string{"handler", "method", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests, by handler, method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method", "code"}),
		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
		BreakerTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions by target state.",
		}, []string{"to"}),
	}
}

// ObserveBreaker is a resilience.BreakerSettings.OnStateChange hook
func (m *Metrics) ObserveBreaker(_, to resilience.State) {
	m.BreakerState.Set(float64(to))
	m.BreakerTransitionsTotal.WithLabelValues(to.String()).Inc()
}

// ObserveRetry is a resilience.RetryPolicy.OnRetry hook
func (m *Metrics) ObserveRetry(int, time.Duration, error) {
	m.FeedRetriesTotal.Inc()
}

// ObserveSkip is a cnb.WithSkipHook hook
func (m *Metrics) ObserveSkip(reason string) {
	m.FeedSkippedRecordsTotal.WithLabelValues(reason).Inc()
}

// Outcome a low cardinality label for err
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, updater.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, updater.ErrNetwork):
		return "network"
	case errors.Is(err, updater.ErrUpstreamFormat):
		return "format"
	default:
		return "error"
	}
}
