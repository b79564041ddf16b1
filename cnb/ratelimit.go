package cnb

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"go-exchange-rate-updater"
)

// rateLimitedService keeps outbound calls to the feed under a fixed rate
type rateLimitedService struct {
	next    Service
	limiter *rate.Limiter
}

// NewRateLimitedService waits on limiter before every call. A nil limiter disables throttling.
func NewRateLimitedService(limiter *rate.Limiter, s Service) Service {
	if limiter == nil {
		return s
	}
	return &rateLimitedService{next: s, limiter: limiter}
}

func (s *rateLimitedService) Quotes(ctx context.Context) ([]updater.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// the wait would outlast the deadline
		if _, ok := ctx.Deadline(); ok {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	return s.next.Quotes(ctx)
}
