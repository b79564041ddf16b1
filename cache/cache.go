package cache

import (
	"context"
	"strings"
	"time"

	"go-exchange-rate-updater"
)

// DefaultTTL how long an assembled result stays fresh
const DefaultTTL = 60 * time.Minute

// Store keeps assembled exchange rates by key.
// Failures of the backing store match updater.ErrCacheUnavailable.
type Store interface {
	// Get returns the rates stored under key, false when absent or expired
	Get(ctx context.Context, key string) ([]updater.ExchangeRate, bool, error)

	// Put stores rates under key for ttl
	Put(ctx context.Context, key string, rates []updater.ExchangeRate, ttl time.Duration) error
}

// Key identifies a request by its normalized currency set and target, e.g. "CZK:EUR,USD".
// Requests that differ only in order, case or duplicates share a key.
func Key(currencies []updater.Currency, target updater.Currency) string {
	normalized := updater.NormalizeCurrencies(currencies)
	codes := make([]string, len(normalized))
	for i, c := range normalized {
		codes[i] = c.Code()
	}
	return target.Code() + ":" + strings.Join(codes, ",")
}

func clone(rates []updater.ExchangeRate) []updater.ExchangeRate {
	if rates == nil {
		return nil
	}
	return append(make([]updater.ExchangeRate, 0, len(rates)), rates...)
}
