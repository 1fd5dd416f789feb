// Package table holds the sharded canonical table: at most one entry per
// content, each entry a weak handle to the canonical instance for that content.
package table

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/atomic"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/contentkey"
	"github.com/RowanDark/internpool/reachability"
	"github.com/RowanDark/internpool/stats"
)

// Outcome describes how LookupOrInsert satisfied a request.
type Outcome int

const (
	// Hit means a live entry already existed.
	Hit Outcome = iota
	// Installed means no entry existed and a new one was created.
	Installed
	// Reinstalled means a stale entry was replaced.
	Reinstalled
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Installed:
		return "installed"
	case Reinstalled:
		return "reinstalled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RemovalReason says why an entry left the table.
type RemovalReason int

const (
	RemovedBySweep RemovalReason = iota
	RemovedByNotification
	RemovedByReinstall
)

func (r RemovalReason) String() string {
	switch r {
	case RemovedBySweep:
		return "sweep"
	case RemovedByNotification:
		return "notification"
	case RemovedByReinstall:
		return "reinstall"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Observer receives table events. Methods are called without any shard lock
// held and may be called concurrently.
type Observer interface {
	Installed(key contentkey.Key, outcome Outcome)
	Hit(key contentkey.Key)
	Removed(key contentkey.Key, reason RemovalReason)
}

// Options configures a Table.
type Options struct {
	Shards   int
	Bridge   reachability.Bridge[canon.String]
	Notify   bool
	Observer Observer
}

// SweepResult summarises one SweepStale call.
type SweepResult struct {
	Examined int
	Removed  int
	Shards   int // shards whose pass completed during the call
}

// Table maps content keys to weak handles of canonical instances.
type Table struct {
	set      *shardSet
	bridge   reachability.Bridge[canon.String]
	notify   bool
	observer Observer

	nextShard *atomic.Uint64

	hits       *atomic.Uint64
	installs   *atomic.Uint64
	reinstalls *atomic.Uint64
	swept      *atomic.Uint64
	reclaimed  *atomic.Uint64
	sweeps     *atomic.Uint64
	rejected   *atomic.Uint64
}

// New creates a Table with opts.Shards shards.
func New(opts Options) (*Table, error) {
	if opts.Bridge == nil {
		return nil, errors.New("table requires a reachability bridge")
	}
	set, err := newShardSet(opts.Shards)
	if err != nil {
		return nil, err
	}
	return &Table{
		set:        set,
		bridge:     opts.Bridge,
		notify:     opts.Notify,
		observer:   opts.Observer,
		nextShard:  atomic.NewUint64(0),
		hits:       atomic.NewUint64(0),
		installs:   atomic.NewUint64(0),
		reinstalls: atomic.NewUint64(0),
		swept:      atomic.NewUint64(0),
		reclaimed:  atomic.NewUint64(0),
		sweeps:     atomic.NewUint64(0),
		rejected:   atomic.NewUint64(0),
	}, nil
}

// ShardCount returns the number of shards.
func (t *Table) ShardCount() int {
	return len(t.set.shards)
}

// ShardFor returns the index of the shard owning key.
func (t *Table) ShardFor(key contentkey.Key) int {
	return t.set.index(key)
}

// LookupOrInsert returns the canonical instance for key, installing a fresh one
// when no live entry exists. The whole decision happens under the key's shard
// lock, so concurrent callers with equal content all receive the same instance.
func (t *Table) LookupOrInsert(key contentkey.Key) (*canon.String, Outcome, error) {
	idx := t.set.index(key)
	s := &t.set.shards[idx]

	s.mu.Lock()
	existing := s.findLocked(key)
	if existing != nil {
		if v := existing.handle.Value(); v != nil {
			s.mu.Unlock()
			t.hits.Inc()
			if t.observer != nil {
				t.observer.Hit(key)
			}
			return v, Hit, nil
		}
	}

	v := canon.New(key)
	handle, err := t.bridge.HoldWeakly(v)
	if err != nil {
		s.mu.Unlock()
		t.rejected.Inc()
		return nil, Installed, fmt.Errorf("hold canonical instance for %v: %w", key, err)
	}

	outcome := Installed
	if existing != nil {
		s.removeLocked(existing)
		outcome = Reinstalled
	}
	// the entry keys on the instance's own copy so the caller's buffer is not pinned
	e := &entry{key: v.Key(), handle: handle}
	s.insertLocked(e)
	s.mu.Unlock()

	if outcome == Reinstalled {
		t.reinstalls.Inc()
	} else {
		t.installs.Inc()
	}
	if t.observer != nil {
		if existing != nil {
			t.observer.Removed(existing.key, RemovedByReinstall)
		}
		t.observer.Installed(e.key, outcome)
	}
	if t.notify {
		t.bridge.OnReclaimed(handle, func() { t.onReclaimed(idx, e) })
	}
	return v, outcome, nil
}

// onReclaimed removes e if that exact entry is still installed and stale.
func (t *Table) onReclaimed(idx int, e *entry) {
	s := &t.set.shards[idx]
	s.mu.Lock()
	removed := false
	if e.slot >= 0 && !t.bridge.IsLive(e.handle) {
		removed = s.removeLocked(e)
	}
	s.mu.Unlock()

	if !removed {
		return
	}
	t.reclaimed.Inc()
	if t.observer != nil {
		t.observer.Removed(e.key, RemovedByNotification)
	}
}

// SweepStale removes entries whose instance has been reclaimed. It examines at
// most budget entries, walking shards round-robin and never holding a shard lock
// for more than SweepBatch entries. A budget <= 0 sweeps one full pass over every
// shard, covering each shard whole regardless of where budgeted sweeps left off.
func (t *Table) SweepStale(budget int) SweepResult {
	var res SweepResult
	n := len(t.set.shards)
	unlimited := budget <= 0

	isLive := func(e *entry) bool { return t.bridge.IsLive(e.handle) }
	var removedKeys []contentkey.Key
	onRemove := func(e *entry) {
		res.Removed++
		if t.observer != nil {
			removedKeys = append(removedKeys, e.key)
		}
	}

	if unlimited {
		for i := range t.set.shards {
			s := &t.set.shards[i]
			for pos := math.MaxInt; pos >= 0; {
				var examined int
				s.mu.Lock()
				examined, pos = s.sweepDownLocked(pos, SweepBatch, isLive, onRemove)
				s.mu.Unlock()
				res.Examined += examined
			}
			res.Shards++
		}
		return t.finishSweep(res, removedKeys)
	}

	for res.Shards < n {
		remaining := budget - res.Examined
		if remaining <= 0 {
			break
		}
		limit := min(SweepBatch, remaining)

		idx := int(t.nextShard.Load() % uint64(n))
		s := &t.set.shards[idx]
		s.mu.Lock()
		examined, passDone := s.sweepLocked(limit, isLive, onRemove)
		s.mu.Unlock()

		res.Examined += examined
		if passDone {
			res.Shards++
			t.nextShard.CompareAndSwap(uint64(idx), uint64(idx)+1)
		}
	}

	return t.finishSweep(res, removedKeys)
}

// finishSweep records res and reports removals once every shard lock is released.
func (t *Table) finishSweep(res SweepResult, removedKeys []contentkey.Key) SweepResult {
	t.sweeps.Inc()
	t.swept.Add(uint64(res.Removed))
	for _, key := range removedKeys {
		t.observer.Removed(key, RemovedBySweep)
	}
	return res
}

// Stats scans every shard and returns a snapshot. Each shard is locked in turn,
// so the result is not a consistent cut across shards.
func (t *Table) Stats() stats.Snapshot {
	snap := stats.Snapshot{
		Shards:       len(t.set.shards),
		ShardEntries: make([]int, len(t.set.shards)),
	}
	for i := range t.set.shards {
		s := &t.set.shards[i]
		s.mu.Lock()
		snap.ShardEntries[i] = len(s.order)
		snap.Entries += len(s.order)
		for _, e := range s.order {
			if !t.bridge.IsLive(e.handle) {
				snap.Stale++
			}
		}
		s.mu.Unlock()
	}
	snap.Hits = t.hits.Load()
	snap.Installs = t.installs.Load()
	snap.Reinstalls = t.reinstalls.Load()
	snap.Swept = t.swept.Load()
	snap.Reclaimed = t.reclaimed.Load()
	snap.Sweeps = t.sweeps.Load()
	snap.Rejected = t.rejected.Load()
	return snap
}

// Len returns the number of entries, live or stale.
func (t *Table) Len() int {
	total := 0
	for i := range t.set.shards {
		s := &t.set.shards[i]
		s.mu.Lock()
		total += len(s.order)
		s.mu.Unlock()
	}
	return total
}

// Range calls fn for each live canonical instance until fn returns false. fn
// runs without any shard lock held.
func (t *Table) Range(fn func(*canon.String) bool) {
	var live []*canon.String
	for i := range t.set.shards {
		s := &t.set.shards[i]
		live = live[:0]
		s.mu.Lock()
		for _, e := range s.order {
			if v := e.handle.Value(); v != nil {
				live = append(live, v)
			}
		}
		s.mu.Unlock()

		for _, v := range live {
			if !fn(v) {
				return
			}
		}
	}
}

// Clear drops every entry and returns how many were removed.
func (t *Table) Clear() int {
	removed := 0
	for i := range t.set.shards {
		s := &t.set.shards[i]
		s.mu.Lock()
		for _, e := range s.order {
			e.slot = -1
			e.next = nil
		}
		removed += len(s.order)
		s.init()
		s.mu.Unlock()
	}
	return removed
}
