package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-exchange-rate-updater"
)

// State of a Breaker
type State int

const (
	// Closed calls pass through and failures are counted
	Closed State = iota
	// Open calls fail fast until the cooldown elapses
	Open
	// HalfOpen a single trial call decides between Closed and Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BreakerSettings configures a Breaker
type BreakerSettings struct {
	// FailureThreshold consecutive failures that open the breaker
	FailureThreshold int

	// Cooldown how long the breaker stays open before allowing a trial call
	Cooldown time.Duration

	// IsFailure decides which errors count against the breaker.
	// nil counts every error except context cancellation.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, in the order the transitions happened.
	// It runs outside the state lock but must not call back into the Breaker.
	OnStateChange func(from, to State)

	// Now defaults to time.Now
	Now func() time.Time
}

// Breaker a circuit breaker state machine.
// All transitions happen under mu, so concurrent callers share one consistent view of the state
// and the failure counter.
type Breaker struct {
	settings BreakerSettings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	// generation changes on every transition; results of calls admitted in an older
	// generation are discarded
	generation uint64

	// pending transitions not yet delivered to OnStateChange, guarded by mu
	pending []transition
	// notifyMu serializes delivery of pending
	notifyMu sync.Mutex
}

type transition struct {
	from, to State
}

// NewBreaker returns a closed Breaker
func NewBreaker(settings BreakerSettings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 1
	}
	if settings.IsFailure == nil {
		settings.IsFailure = defaultIsFailure
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{settings: settings}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// State returns the current state, moving an expired Open breaker to HalfOpen
func (b *Breaker) State() State {
	b.mu.Lock()
	b.expire()
	state := b.state
	b.mu.Unlock()

	b.flush()
	return state
}

// Execute runs fn if the breaker admits the call and records its outcome.
// A rejected call returns ErrCircuitOpen without running fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.record(generation, err)
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	b.expire()

	var err error
	switch b.state {
	case Open:
		err = fmt.Errorf("%w: retry after %v", updater.ErrCircuitOpen, b.openedAt.Add(b.settings.Cooldown).Sub(b.settings.Now()).Round(time.Millisecond))
	case HalfOpen:
		if b.probing {
			err = fmt.Errorf("%w: trial call in flight", updater.ErrCircuitOpen)
		} else {
			b.probing = true
		}
	}
	generation := b.generation
	b.mu.Unlock()

	b.flush()
	return generation, err
}

func (b *Breaker) record(generation uint64, err error) {
	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return
	}

	from := b.state
	to := b.state
	switch {
	case err == nil:
		b.failures = 0
		to = Closed
	case b.settings.IsFailure(err):
		b.failures++
		if b.state == HalfOpen || b.failures >= b.settings.FailureThreshold {
			to = Open
		}
	default:
		// neither success nor failure; release the trial call slot
		b.probing = false
	}

	if from != to {
		b.transition(to)
	}
	b.mu.Unlock()

	b.flush()
}

// expire moves Open to HalfOpen once the cooldown elapsed. Callers hold mu.
func (b *Breaker) expire() {
	if b.state == Open && b.settings.Now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(HalfOpen)
	}
}

// transition callers hold mu
func (b *Breaker) transition(to State) {
	if b.settings.OnStateChange != nil {
		b.pending = append(b.pending, transition{from: b.state, to: to})
	}
	b.state = to
	b.generation++
	b.probing = false
	switch to {
	case Open:
		b.openedAt = b.settings.Now()
	case Closed:
		b.failures = 0
	}
}

// flush delivers pending transitions. Whoever holds notifyMu drains the queue,
// so a transition recorded while another goroutine is delivering is not lost or reordered.
func (b *Breaker) flush() {
	if b.settings.OnStateChange == nil {
		return
	}
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	for {
		b.mu.Lock()
		pending := b.pending
		b.pending = nil
		b.mu.Unlock()
		if len(pending) == 0 {
			return
		}
		for _, t := range pending {
			b.settings.OnStateChange(t.from, t.to)
		}
	}
}
