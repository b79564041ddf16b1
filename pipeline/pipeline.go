package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"go-exchange-rate-updater/cache"
	"go-exchange-rate-updater/cnb"
	"go-exchange-rate-updater/config"
	"go-exchange-rate-updater/exchange"
	"go-exchange-rate-updater/metrics"
	"go-exchange-rate-updater/resilience"
)

// Pipeline the rate provider with the dependencies it reports health for
type Pipeline struct {
	Service exchange.Service
	Breaker *resilience.Breaker

	redis *cache.RedisStore
	close func() error

	feedURL    string
	feedClient cnb.HTTPClient
}

// Check a named health check. A failing critical check means the service cannot answer requests;
// a failing non-critical one only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// NewLogger a logfmt logger filtered at lvl (debug, info, warn or error)
func NewLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var allow level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		allow = level.AllowInfo()
	}
	return level.NewFilter(logger, allow)
}

// New builds feed, resilience policies, cache and exchange service from cfg.
// Redis is pinged once; an unreachable Redis is logged and the cache degrades per request.
func New(ctx context.Context, cfg *config.Config, logger log.Logger, m *metrics.Metrics) (*Pipeline, error) {
	format, err := cnb.ParseFormat(cfg.Feed.Format)
	if err != nil {
		return nil, err
	}

	feedLogger := log.With(logger, "component", "cnb")
	feedClient := cnb.NewHTTPClient(cfg.Feed.Timeout)
	source := cnb.NewService(
		cnb.WithURL(cfg.Feed.URL),
		cnb.WithHTTPClient(feedClient),
		cnb.WithFormat(format),
		cnb.WithLogger(feedLogger),
		cnb.WithSkipHook(m.ObserveSkip),
	)
	source = metrics.NewInstrumentingService(m, source)
	source = cnb.NewLoggingService(feedLogger, source)
	if cfg.Feed.MaxRPS > 0 {
		source = cnb.NewRateLimitedService(rate.NewLimiter(rate.Limit(cfg.Feed.MaxRPS), 1), source)
	}

	breakerLogger := log.With(logger, "component", "breaker")
	breaker := resilience.NewBreaker(resilience.BreakerSettings{
		FailureThreshold: cfg.Feed.Breaker.Failures,
		Cooldown:         cfg.Feed.Breaker.Cooldown,
		IsFailure:        cnb.IsTransient,
		OnStateChange: func(from, to resilience.State) {
			m.ObserveBreaker(from, to)
			level.Warn(breakerLogger).Log("msg", "circuit state changed", "from", from, "to", to)
		},
	})
	policy := resilience.RetryPolicy{
		Retries:   cfg.Feed.Retry.Attempts,
		BaseDelay: cfg.Feed.Retry.BaseDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.ObserveRetry(attempt, delay, err)
			level.Info(feedLogger).Log("msg", "retrying feed", "attempt", attempt, "delay", delay, "err", err)
		},
	}
	source = cnb.NewResilientService(policy, breaker, source)

	p := &Pipeline{
		Breaker:    breaker,
		close:      func() error { return nil },
		feedURL:    cfg.Feed.URL,
		feedClient: feedClient,
	}

	exchangeLogger := log.With(logger, "component", "exchange")
	var service exchange.Service
	if !cfg.Cache.Disabled {
		var store cache.Store
		switch strings.ToLower(cfg.Cache.Backend) {
		case "redis":
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			p.redis = cache.NewRedisStore(rdb, cache.WithPrefix(cfg.Cache.Redis.Prefix))
			p.close = rdb.Close

			// requests fall back to the feed while Redis is down
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := p.redis.Ping(pingCtx); err != nil {
				level.Warn(exchangeLogger).Log("msg", "redis not reachable, serving from feed until it is", "addr", cfg.Cache.Redis.Addr, "err", err)
			}
			cancel()
			store = p.redis
		default:
			store = cache.NewMemoryStore(cfg.Cache.Capacity)
		}
		store = metrics.NewInstrumentingStore(m, store)
		service = exchange.NewCachingService(store, source, cfg.Cache.TTL(), exchangeLogger)
	} else {
		service = exchange.NewService(source, exchangeLogger)
	}
	p.Service = exchange.NewLoggingService(exchangeLogger, service)

	return p, nil
}

// Checks health checks of the feed and, when used, Redis.
// The feed is critical: it fails while the circuit is open or the listing URL does not answer.
func (p *Pipeline) Checks() []Check {
	checks := []Check{{
		Name:     "feed",
		Critical: true,
		Run: func(ctx context.Context) error {
			if state := p.Breaker.State(); state == resilience.Open {
				return fmt.Errorf("circuit %v", state)
			}
			return cnb.Ping(ctx, p.feedClient, p.feedURL)
		},
	}}
	if p.redis != nil {
		checks = append(checks, Check{Name: "cache", Run: p.redis.Ping})
	}
	return checks
}

// Close releases connections held by the pipeline
func (p *Pipeline) Close() error {
	return p.close()
}
