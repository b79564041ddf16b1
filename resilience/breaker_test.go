package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-exchange-rate-updater"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock) (*Breaker, *[]transition) {
	var transitions []transition
	b := NewBreaker(BreakerSettings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		IsFailure:        isNetwork,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, transition{from, to})
		},
	})
	return b, &transitions
}

func fail(ctx context.Context) error    { return updater.ErrNetwork }
func succeed(ctx context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, transitions := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), updater.ErrNetwork)
		assert.Equal(t, Closed, b.State())
	}
	assert.ErrorIs(t, b.Execute(ctx, fail), updater.ErrNetwork)
	assert.Equal(t, Open, b.State())

	called := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, updater.ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []transition{{Closed, Open}}, *transitions)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, _ := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail)
	}
	require.NoError(t, b.Execute(ctx, succeed))
	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail)
	}
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_NonQualifyingErrorsAreNeutral(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, _ := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail)
	}
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, b.Execute(ctx, func(ctx context.Context) error { return updater.ErrUpstreamFormat }), updater.ErrUpstreamFormat)
	}
	assert.Equal(t, Closed, b.State())

	_ = b.Execute(ctx, fail)
	assert.Equal(t, Open, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, transitions := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(29 * time.Second)
	assert.Equal(t, Open, b.State())

	clock.Advance(time.Second)
	assert.Equal(t, HalfOpen, b.State())

	// failed trial call reopens for a full cooldown
	assert.ErrorIs(t, b.Execute(ctx, fail), updater.ErrNetwork)
	assert.Equal(t, Open, b.State())

	clock.Advance(30 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, Closed, b.State())

	assert.Equal(t, []transition{
		{Closed, Open},
		{Open, HalfOpen},
		{HalfOpen, Open},
		{Open, HalfOpen},
		{HalfOpen, Closed},
	}, *transitions)
}

func TestBreaker_SingleTrialInFlight(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, _ := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(30 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Execute(ctx, succeed)
	assert.ErrorIs(t, err, updater.ErrCircuitOpen)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_NeutralTrialReleasesSlot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, _ := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(30 * time.Second)

	err := b.Execute(ctx, func(ctx context.Context) error { return context.Canceled })
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, HalfOpen, b.State())

	assert.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var mu sync.Mutex
	opened := 0
	b := NewBreaker(BreakerSettings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		IsFailure:        isNetwork,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			if to == Open {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), fail)
		}()
	}
	wg.Wait()

	assert.Equal(t, Open, b.State())
	assert.Equal(t, 1, opened)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
}

func TestBreaker_StateChangesAreDeliveredInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []transition
	b := NewBreaker(BreakerSettings{
		FailureThreshold: 1,
		Cooldown:         0,
		IsFailure:        isNetwork,
		OnStateChange: func(from, to State) {
			mu.Lock()
			seen = append(seen, transition{from, to})
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (i+j)%2 == 0 {
					_ = b.Execute(context.Background(), fail)
				} else {
					_ = b.Execute(context.Background(), succeed)
				}
			}
		}(i)
	}
	wg.Wait()
	last := b.State()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, Closed, seen[0].from)
	for i := 1; i < len(seen); i++ {
		require.Equal(t, seen[i-1].to, seen[i].from, "transition %d", i)
	}
	assert.Equal(t, last, seen[len(seen)-1].to)
}
