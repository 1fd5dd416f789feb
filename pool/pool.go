// Package pool is the public face of the intern pool: it turns strings, byte
// slices and UTF-16 code units into canonical instances that can be compared by
// pointer.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/contentkey"
	"github.com/RowanDark/internpool/logging"
	"github.com/RowanDark/internpool/ratelimit"
	"github.com/RowanDark/internpool/reachability"
	"github.com/RowanDark/internpool/stats"
	"github.com/RowanDark/internpool/table"
)

var (
	ErrInvalidArgument   = contentkey.ErrInvalidArgument
	ErrResourceExhausted = reachability.ErrResourceExhausted
	ErrClosed            = errors.New("intern pool closed")
)

const (
	// DefaultSweepBudget is the number of entries a periodic sweep examines
	// when Options.SweepBudget is zero.
	DefaultSweepBudget = 4096

	minDefaultShards = 16
	maxDefaultShards = 1024
)

type Options struct {
	// Shards is the shard count, a power of two. Zero selects DefaultShards.
	Shards int
	// Bridge decides reachability. Nil uses the Go garbage collector through
	// weak pointers.
	Bridge reachability.Bridge[canon.String]
	// DisableNotifications stops the table from registering reclamation
	// callbacks; stale entries are then only removed by sweeps and reinstalls.
	DisableNotifications bool
	// SweepInterval enables the periodic sweeper started by Start.
	SweepInterval time.Duration
	SweepBudget   int
	// AmortizedSweepRate is how many small sweeps per second Intern calls may
	// trigger. Zero disables amortized sweeping.
	AmortizedSweepRate float64

	Logger   *logging.Logger
	Observer table.Observer
	Clock    clock.Clock
}

// Pool maps string content to canonical instances. All methods are safe for
// concurrent use.
type Pool struct {
	table  *table.Table
	logger *logging.Logger
	clock  clock.Clock

	sweepInterval time.Duration
	sweepBudget   int
	limiter       *ratelimit.Limiter

	// life is held shared by interns and exclusively by Close while it marks
	// the pool closed, so no install can land after the table is cleared.
	life   sync.RWMutex
	closed *atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// DefaultShards returns the smallest power of two that is at least four times
// GOMAXPROCS, kept between 16 and 1024.
func DefaultShards() int {
	n := table.NextPowerOfTwo(4 * runtime.GOMAXPROCS(0))
	if n < minDefaultShards {
		return minDefaultShards
	}
	if n > maxDefaultShards {
		return maxDefaultShards
	}
	return n
}

// New builds a pool. The caller owns it and should Close it when done.
func New(opts Options) (*Pool, error) {
	shards := opts.Shards
	if shards == 0 {
		shards = DefaultShards()
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = reachability.NewWeakBridge[canon.String](reachability.WeakOptions{})
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	if opts.SweepInterval < 0 {
		return nil, fmt.Errorf("sweep interval %s: %w", opts.SweepInterval, ErrInvalidArgument)
	}
	if opts.SweepBudget < 0 {
		return nil, fmt.Errorf("sweep budget %d: %w", opts.SweepBudget, ErrInvalidArgument)
	}
	budget := opts.SweepBudget
	if budget == 0 {
		budget = DefaultSweepBudget
	}

	tbl, err := table.New(table.Options{
		Shards:   shards,
		Bridge:   bridge,
		Notify:   !opts.DisableNotifications,
		Observer: opts.Observer,
	})
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	p := &Pool{
		table:         tbl,
		logger:        opts.Logger.With("pool"),
		clock:         clk,
		sweepInterval: opts.SweepInterval,
		sweepBudget:   budget,
		closed:        atomic.NewBool(false),
	}
	if opts.AmortizedSweepRate > 0 {
		p.limiter = ratelimit.NewWithClock(opts.AmortizedSweepRate, clk)
	}

	p.logger.Debugf("Created pool with %d shards (notifications: %t, sweep interval: %s)", shards, !opts.DisableNotifications, opts.SweepInterval)
	return p, nil
}

// Intern returns the canonical instance for s.
func (p *Pool) Intern(s string) (*canon.String, error) {
	return p.intern(contentkey.Compute(s))
}

// InternBytes returns the canonical instance for the content of b. A nil slice
// is rejected; an empty one is the empty string.
func (p *Pool) InternBytes(b []byte) (*canon.String, error) {
	key, err := contentkey.ComputeBytes(b)
	if err != nil {
		return nil, err
	}
	return p.intern(key)
}

// InternUTF16 returns the canonical instance for UTF-16 content. The result is
// the same instance Intern returns for the equal UTF-8 string.
func (p *Pool) InternUTF16(units []uint16) (*canon.String, error) {
	key, err := contentkey.ComputeUTF16(units)
	if err != nil {
		return nil, err
	}
	return p.intern(key)
}

// MustIntern is Intern for callers that cannot handle failure.
func (p *Pool) MustIntern(s string) *canon.String {
	v, err := p.Intern(s)
	if err != nil {
		panic(fmt.Sprintf("internpool: intern %q: %v", s, err))
	}
	return v
}

func (p *Pool) intern(key contentkey.Key) (*canon.String, error) {
	p.life.RLock()
	defer p.life.RUnlock()
	if p.closed.Load() {
		return nil, ErrClosed
	}

	v, _, err := p.table.LookupOrInsert(key)
	if err != nil {
		if errors.Is(err, ErrResourceExhausted) {
			p.logger.Warnf("Cannot intern %v: %v", key, err)
		}
		return nil, err
	}

	if p.limiter != nil && p.limiter.Allow() {
		p.table.SweepStale(table.SweepBatch)
	}
	return v, nil
}

// Stats returns a snapshot of the pool's table.
func (p *Pool) Stats() stats.Snapshot {
	return p.table.Stats()
}

// Sweep removes stale entries, examining at most budget of them. A budget of
// zero or less sweeps every shard once.
func (p *Pool) Sweep(budget int) table.SweepResult {
	res := p.table.SweepStale(budget)
	if res.Removed > 0 {
		p.logger.Debugf("Swept %d stale entries (%d examined)", res.Removed, res.Examined)
	}
	return res
}

// Range calls fn for every live canonical instance until fn returns false.
func (p *Pool) Range(fn func(*canon.String) bool) {
	p.table.Range(fn)
}

// Len returns the number of entries, including stale ones not yet removed.
func (p *Pool) Len() int {
	return p.table.Len()
}

// Close stops the sweeper, drops every entry and makes further interns fail
// with ErrClosed. Instances already handed out remain valid values. Close is
// idempotent.
func (p *Pool) Close() error {
	p.life.Lock()
	swapped := p.closed.CompareAndSwap(false, true)
	p.life.Unlock()
	if !swapped {
		return nil
	}
	p.stopSweeper()
	removed := p.table.Clear()
	p.logger.Debugf("Closed pool, released %d entries", removed)
	return nil
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}
