package exchange

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/cache"
	"go-exchange-rate-updater/cnb"
)

// cachingService answers repeated requests from a cache.Store.
// A failing store never fails a request; the feed is read instead.
type cachingService struct {
	store  cache.Store
	source cnb.Service
	ttl    time.Duration
	logger log.Logger
}

// NewCachingService constructs a Service that consults store before the feed.
// A non-positive ttl means cache.DefaultTTL.
func NewCachingService(store cache.Store, source cnb.Service, ttl time.Duration, logger log.Logger) Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &cachingService{
		store:  store,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *cachingService) GetRates(ctx context.Context, currencies []updater.Currency, target updater.Currency) ([]updater.ExchangeRate, error) {
	if err := validate(currencies, target); err != nil {
		return nil, err
	}

	key := cache.Key(currencies, target)
	rates, ok, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		level.Warn(s.logger).Log("msg", "cache read failed, using feed", "key", key, "err", err)
	case ok:
		return rates, nil
	}

	rates, err = fetch(ctx, s.source, s.logger, currencies, target)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, key, rates, s.ttl); err != nil {
		level.Warn(s.logger).Log("msg", "cache write failed", "key", key, "err", err)
	}
	return rates, nil
}
