package table

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/contentkey"
	"github.com/RowanDark/internpool/reachability"
)

// SweepBatch is the most entries a sweep examines per shard lock hold.
const SweepBatch = 64

// MaxShards bounds the shard count accepted by New.
const MaxShards = 1 << 16

type entry struct {
	key    contentkey.Key
	handle reachability.Handle[canon.String]
	next   *entry // hash collision chain
	slot   int    // index in shard.order, -1 once removed
}

// shard is one independently locked partition of the table. buckets indexes
// entries by hash with an explicit chain for collisions; order lists the same
// entries so a sweep can resume where it stopped.
type shard struct {
	mu      sync.Mutex
	buckets map[uint64]*entry
	order   []*entry
	cursor  int
}

func (s *shard) init() {
	s.buckets = make(map[uint64]*entry)
	s.order = nil
	s.cursor = 0
}

// findLocked returns the entry for key, live or stale. A chain holding two
// entries for the same content means the table lost its uniqueness invariant.
func (s *shard) findLocked(key contentkey.Key) *entry {
	var found *entry
	for e := s.buckets[key.Hash()]; e != nil; e = e.next {
		if !e.key.Equal(key) {
			continue
		}
		if found != nil {
			panic(fmt.Sprintf("internpool: duplicate entries for key %v", key))
		}
		found = e
	}
	return found
}

func (s *shard) insertLocked(e *entry) {
	hash := e.key.Hash()
	e.next = s.buckets[hash]
	s.buckets[hash] = e
	e.slot = len(s.order)
	s.order = append(s.order, e)
}

// removeLocked unlinks e and reports whether it was still installed.
func (s *shard) removeLocked(e *entry) bool {
	if e.slot < 0 {
		return false
	}

	hash := e.key.Hash()
	head := s.buckets[hash]
	if head == e {
		if e.next == nil {
			delete(s.buckets, hash)
		} else {
			s.buckets[hash] = e.next
		}
	} else {
		for prev := head; prev != nil; prev = prev.next {
			if prev.next == e {
				prev.next = e.next
				break
			}
		}
	}
	e.next = nil

	last := len(s.order) - 1
	moved := s.order[last]
	s.order[e.slot] = moved
	moved.slot = e.slot
	s.order[last] = nil
	s.order = s.order[:last]
	e.slot = -1
	return true
}

// sweepLocked examines up to limit entries from the shard cursor and removes the
// ones isLive rejects. passDone reports that the cursor wrapped around.
func (s *shard) sweepLocked(limit int, isLive func(*entry) bool, removed func(*entry)) (examined int, passDone bool) {
	for examined < limit {
		if s.cursor >= len(s.order) {
			s.cursor = 0
			return examined, true
		}
		e := s.order[s.cursor]
		examined++
		if isLive(e) {
			s.cursor++
			continue
		}
		// swap-remove moves the last entry into the cursor slot; examine it next
		s.removeLocked(e)
		removed(e)
	}
	if s.cursor >= len(s.order) {
		s.cursor = 0
		return examined, true
	}
	return examined, false
}

// sweepDownLocked examines up to limit entries walking down from pos, the
// position of the next entry to examine, and returns the next position. A
// result below zero means the walk reached the front of the shard. Walking
// down keeps the walk exact across lock releases: swap-remove only moves
// entries from above pos, which were already examined.
func (s *shard) sweepDownLocked(pos, limit int, isLive func(*entry) bool, removed func(*entry)) (examined, next int) {
	if pos >= len(s.order) {
		pos = len(s.order) - 1
	}
	for ; pos >= 0 && examined < limit; pos-- {
		e := s.order[pos]
		examined++
		if !isLive(e) {
			s.removeLocked(e)
			removed(e)
		}
	}
	return examined, pos
}

// shardSet is the concurrency controller: a fixed, power-of-two array of shards
// selected by the low bits of the content hash.
type shardSet struct {
	shards []shard
	mask   uint64
}

func newShardSet(n int) (*shardSet, error) {
	if !IsPowerOfTwo(n) || n > MaxShards {
		return nil, fmt.Errorf("shard count %d must be a power of two between 1 and %d: %w", n, MaxShards, contentkey.ErrInvalidArgument)
	}
	set := &shardSet{shards: make([]shard, n), mask: uint64(n - 1)}
	for i := range set.shards {
		set.shards[i].init()
	}
	return set, nil
}

func (ss *shardSet) index(key contentkey.Key) int {
	return int(key.Hash() & ss.mask)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n, and 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
