package resilience

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done, whichever comes first
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy retries a call with exponential backoff.
// With Retries 3 and BaseDelay 2s a failing call is attempted 4 times, waiting 2s, 4s and 8s in between.
type RetryPolicy struct {
	// Retries how many times a failed call is repeated
	Retries int

	// BaseDelay the wait before the first retry; doubled for every further retry
	BaseDelay time.Duration

	// ShouldRetry decides whether an error is transient. nil retries every error.
	ShouldRetry func(error) bool

	// OnRetry is called before each wait
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep defaults to a timer honouring ctx
	Sleep SleepFunc
}

// Delay the wait before retry number attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Do calls fn until it succeeds, the error is not retryable, retries are exhausted or ctx is done.
// The error of the last attempt is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.Retries || (p.ShouldRetry != nil && !p.ShouldRetry(err)) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := p.Delay(attempt + 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Sleep waits for d unless ctx is done first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
