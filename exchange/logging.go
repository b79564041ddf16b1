package exchange

import (
	"context"
	"time"

	"github.com/go-kit/log"

	"go-exchange-rate-updater"
)

// loggingService decorates an exchange.Service with logging
type loggingService struct {
	logger log.Logger
	next   Service
}

// NewLoggingService returns a new instance of a logging Service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) GetRates(ctx context.Context, currencies []updater.Currency, target updater.Currency) (rates []updater.ExchangeRate, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "get_rates",
			"currencies", len(currencies),
			"target", target,
			"found", len(rates),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.GetRates(ctx, currencies, target)
}
