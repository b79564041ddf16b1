package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/cache"
	"go-exchange-rate-updater/cnb"
)

type instrumentingService struct {
	next    cnb.Service
	metrics *Metrics
}

// NewInstrumentingService records outcome and duration of every feed call
func NewInstrumentingService(m *Metrics, s cnb.Service) cnb.Service {
	return &instrumentingService{next: s, metrics: m}
}

func (s *instrumentingService) Quotes(ctx context.Context) (quotes []updater.Quote, err error) {
	defer func(begin time.Time) {
		outcome := Outcome(err)
		s.metrics.FeedRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.FeedRequestDuration.WithLabelValues(outcome).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return s.next.Quotes(ctx)
}

type instrumentingStore struct {
	next    cache.Store
	metrics *Metrics
}

// NewInstrumentingStore counts hits, misses and failures of a cache.Store
func NewInstrumentingStore(m *Metrics, s cache.Store) cache.Store {
	return &instrumentingStore{next: s, metrics: m}
}

func (s *instrumentingStore) Get(ctx context.Context, key string) ([]updater.ExchangeRate, bool, error) {
	rates, ok, err := s.next.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
	case ok:
		s.metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	default:
		s.metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}
	return rates, ok, err
}

func (s *instrumentingStore) Put(ctx context.Context, key string, rates []updater.ExchangeRate, ttl time.Duration) error {
	err := s.next.Put(ctx, key, rates, ttl)
	if err != nil {
		s.metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
	} else {
		s.metrics.CacheRequestsTotal.WithLabelValues("stored").Inc()
	}
	return err
}

// InstrumentHandler counts and times requests served by h under route
func (m *Metrics) InstrumentHandler(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": route}
	h = promhttp.InstrumentHandlerDuration(m.HTTPRequestDuration.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(labels), h)
}
