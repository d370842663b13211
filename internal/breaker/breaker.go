// Package breaker implements a consecutive-failure circuit breaker for one
// logical remote endpoint.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Execute when the call was short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
}

type Snapshot struct {
	Name     string
	State    State
	Failures int
	OpenedAt time.Time
}

type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithOnStateChange registers a hook that runs after every transition, outside the breaker lock.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// WithFailurePredicate decides which errors count as failures. Errors it rejects
// leave the state untouched.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(b *Breaker) {
		b.isFailure = fn
	}
}

type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	now           func() time.Time
	onStateChange func(name string, from, to State)
	isFailure     func(error) bool

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	generation uint64
	trialBusy  bool
}

func New(name string, s Settings, opts ...Option) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 1
	}
	b := &Breaker{
		name:      name,
		threshold: s.FailureThreshold,
		cooldown:  s.Cooldown,
		now:       time.Now,
		isFailure: func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Name: b.name, State: b.state, Failures: b.failures, OpenedAt: b.openedAt}
}

// Execute runs fn if the circuit admits the call and records its outcome.
// It returns ErrOpen without calling fn when the circuit is open or a
// half-open trial is already in flight. When ctx is done by the time fn
// returns, the outcome is discarded and ctx.Err() is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, ok := b.allow()
	if !ok {
		return ErrOpen
	}

	err := fn(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		b.release(gen)
		return ctxErr
	}

	switch {
	case err == nil:
		b.onSuccess(gen)
	case b.isFailure(err):
		b.onFailure(gen)
	default:
		b.release(gen)
	}
	return err
}

func (b *Breaker) allow() (uint64, bool) {
	b.mu.Lock()
	var change *transition
	defer func() {
		b.mu.Unlock()
		b.notify(change)
	}()

	switch b.state {
	case StateClosed:
		return b.generation, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return 0, false
		}
		change = b.setState(StateHalfOpen)
		b.trialBusy = true
		return b.generation, true
	default:
		if b.trialBusy {
			return 0, false
		}
		b.trialBusy = true
		return b.generation, true
	}
}

func (b *Breaker) onSuccess(gen uint64) {
	b.mu.Lock()
	var change *transition
	defer func() {
		b.mu.Unlock()
		b.notify(change)
	}()

	if gen != b.generation {
		return
	}
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		change = b.setState(StateClosed)
	}
}

func (b *Breaker) onFailure(gen uint64) {
	b.mu.Lock()
	var change *transition
	defer func() {
		b.mu.Unlock()
		b.notify(change)
	}()

	if gen != b.generation {
		return
	}
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			change = b.setState(StateOpen)
		}
	case StateHalfOpen:
		change = b.setState(StateOpen)
	}
}

// release frees a half-open trial slot without judging the endpoint.
func (b *Breaker) release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen == b.generation && b.state == StateHalfOpen {
		b.trialBusy = false
	}
}

type transition struct {
	from, to State
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) *transition {
	from := b.state
	b.state = to
	b.generation++
	b.trialBusy = false

	switch to {
	case StateClosed:
		b.failures = 0
		b.openedAt = time.Time{}
	case StateOpen:
		b.openedAt = b.now()
	}
	return &transition{from: from, to: to}
}

func (b *Breaker) notify(t *transition) {
	if t == nil || b.onStateChange == nil {
		return
	}
	b.onStateChange(b.name, t.from, t.to)
}
