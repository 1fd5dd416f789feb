package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Limiter is a token bucket. A nil *Limiter allows everything.
type Limiter struct {
	rate     float64
	capacity float64
	tokens   float64
	lastFill time.Time
	clock    clock.Clock
	mu       sync.Mutex
}

// Status describes the current utilisation state of a Limiter.
type Status struct {
	Rate        float64
	Capacity    float64
	Remaining   float64
	Utilization float64
	RefillIn    time.Duration
}

// New returns a limiter refilling rate tokens per second on the wall clock, or
// nil when rate is not positive.
func New(rate float64) *Limiter {
	return NewWithClock(rate, clock.New())
}

// NewWithClock is New with an explicit time source.
func NewWithClock(rate float64, clk clock.Clock) *Limiter {
	if rate <= 0 {
		return nil
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Limiter{
		rate:     rate,
		capacity: math.Max(rate, 1),
		tokens:   math.Max(rate, 1),
		lastFill: clk.Now(),
		clock:    clk,
	}
}

// Allow takes a token if one is available without waiting.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked(l.clock.Now())
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Acquire waits for a token or for ctx to end.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		l.refillLocked(l.clock.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		l.mu.Unlock()

		timer := l.clock.Timer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (l *Limiter) refillLocked(now time.Time) {
	if now.Before(l.lastFill) {
		l.lastFill = now
		return
	}
	elapsed := now.Sub(l.lastFill)
	if elapsed <= 0 {
		return
	}
	l.tokens = math.Min(l.capacity, l.tokens+elapsed.Seconds()*l.rate)
	l.lastFill = now
}

// Status returns information about the limiter's current token bucket state.
func (l *Limiter) Status() Status {
	if l == nil {
		return Status{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked(l.clock.Now())

	remaining := l.tokens
	used := math.Max(l.capacity-remaining, 0)
	utilization := 0.0
	if l.capacity > 0 {
		utilization = math.Min(math.Max(used/l.capacity, 0), 1)
	}
	refillIn := time.Duration(0)
	if used > 0 {
		refillIn = time.Duration(used / l.rate * float64(time.Second))
	}

	return Status{
		Rate:        l.rate,
		Capacity:    l.capacity,
		Remaining:   remaining,
		Utilization: utilization,
		RefillIn:    refillIn,
	}
}
