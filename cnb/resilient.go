package cnb

import (
	"context"
	"errors"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/resilience"
)

// IsTransient reports whether a failed fetch is worth repeating and counts against the breaker.
// Cancellation and format errors are not.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, updater.ErrNetwork)
}

type retryingService struct {
	next   Service
	policy resilience.RetryPolicy
}

// NewRetryingService repeats failed calls according to policy
func NewRetryingService(policy resilience.RetryPolicy, s Service) Service {
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = IsTransient
	}
	return &retryingService{next: s, policy: policy}
}

func (s *retryingService) Quotes(ctx context.Context) (quotes []updater.Quote, err error) {
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		quotes, callErr = s.next.Quotes(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

type breakerService struct {
	next    Service
	breaker *resilience.Breaker
}

// NewBreakerService fails fast with updater.ErrCircuitOpen while breaker is open
func NewBreakerService(breaker *resilience.Breaker, s Service) Service {
	return &breakerService{next: s, breaker: breaker}
}

func (s *breakerService) Quotes(ctx context.Context) (quotes []updater.Quote, err error) {
	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		quotes, callErr = s.next.Quotes(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

// NewResilientService retries inside the circuit breaker, so one exhausted retry cycle
// counts as a single failure.
func NewResilientService(policy resilience.RetryPolicy, breaker *resilience.Breaker, s Service) Service {
	return NewBreakerService(breaker, NewRetryingService(policy, s))
}
