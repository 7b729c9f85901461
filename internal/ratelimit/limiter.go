package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds a provider to maxConcurrent in-flight requests and holds every permit for at
// least 1/maxConcurrent seconds, which keeps throughput near maxConcurrent requests/second.
type Limiter struct {
	name          string
	maxConcurrent int64
	interval      time.Duration
	sem           *semaphore.Weighted
	clock         Clock
	inFlight      atomic.Int64
	observer      Observer
}

// Observer receives permit wait and hold timings.
type Observer interface {
	ObservePermitWait(limiter string, wait time.Duration)
	ObservePermitHold(limiter string, hold time.Duration)
}

type Option func(*Limiter)

func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithInterval overrides the default 1/maxConcurrent pacing interval.
func WithInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		if interval > 0 {
			l.interval = interval
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(l *Limiter) {
		l.observer = observer
	}
}

func New(name string, maxConcurrent int, opts ...Option) (*Limiter, error) {
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("limiter %s: max concurrent must be positive, got %d", name, maxConcurrent)
	}
	l := &Limiter{
		name:          name,
		maxConcurrent: int64(maxConcurrent),
		interval:      time.Second / time.Duration(maxConcurrent),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		clock:         SystemClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) MaxConcurrent() int {
	return int(l.maxConcurrent)
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// InFlight reports how many permits are currently held.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	start := l.clock.Now()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("limiter %s: acquire: %w", l.name, err)
	}
	acquired := l.clock.Now()
	l.inFlight.Add(1)
	if l.observer != nil {
		l.observer.ObservePermitWait(l.name, acquired.Sub(start))
	}
	return &Permit{limiter: l, acquiredAt: acquired}, nil
}

// Permit is the right to issue one request. Release must be called on every exit path.
type Permit struct {
	limiter    *Limiter
	acquiredAt time.Time
	once       sync.Once
}

// Release waits out the remainder of the pacing interval measured from acquisition and then
// frees the slot. The wait is not interruptible so the quota holds during shutdown too. It
// returns the pacing wait that was applied.
func (p *Permit) Release() time.Duration {
	var waited time.Duration
	released := false
	p.once.Do(func() {
		released = true
		l := p.limiter
		elapsed := l.clock.Now().Sub(p.acquiredAt)
		if remaining := l.interval - elapsed; remaining > 0 {
			_ = l.clock.Sleep(context.Background(), remaining)
			waited = remaining
		}
		if l.observer != nil {
			l.observer.ObservePermitHold(l.name, l.clock.Now().Sub(p.acquiredAt))
		}
		l.inFlight.Add(-1)
		l.sem.Release(1)
	})
	if !released {
		return 0
	}
	return waited
}
