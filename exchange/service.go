package exchange

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/cnb"
)

// Service provides exchange rates of foreign currencies against a target currency
type Service interface {
	// GetRates returns one record per requested currency the feed knows; unknown codes are left out.
	GetRates(ctx context.Context, currencies []updater.Currency, target updater.Currency) ([]updater.ExchangeRate, error)
}

// service reads the feed on every call
type service struct {
	// source of the daily listing
	source cnb.Service

	logger log.Logger
}

// NewService constructs a Service without caching
func NewService(source cnb.Service, logger log.Logger) Service {
	return &service{
		source: source,
		logger: logger,
	}
}

func (s *service) GetRates(ctx context.Context, currencies []updater.Currency, target updater.Currency) ([]updater.ExchangeRate, error) {
	if err := validate(currencies, target); err != nil {
		return nil, err
	}
	return fetch(ctx, s.source, s.logger, currencies, target)
}

func validate(currencies []updater.Currency, target updater.Currency) error {
	if target.IsZero() {
		return fmt.Errorf("%w: missing target currency", updater.ErrInvalidArgument)
	}
	if len(updater.NormalizeCurrencies(currencies)) == 0 {
		return fmt.Errorf("%w: no currencies requested", updater.ErrInvalidArgument)
	}
	return nil
}

func fetch(ctx context.Context, source cnb.Service, logger log.Logger, currencies []updater.Currency, target updater.Currency) ([]updater.ExchangeRate, error) {
	quotes, err := source.Quotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching rates: %w", err)
	}

	rates, missing := Assemble(quotes, currencies, target)
	if len(missing) > 0 {
		level.Debug(logger).Log("msg", "currencies not in feed", "missing", fmt.Sprint(missing))
	}
	return rates, nil
}
