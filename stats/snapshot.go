package stats

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is a point-in-time, non-authoritative view of a pool. Counts may be
// stale by the time the caller reads them.
type Snapshot struct {
	Shards     int    `json:"shards"`
	Entries    int    `json:"entries"`
	Stale      int    `json:"stale"`
	Hits       uint64 `json:"hits"`
	Installs   uint64 `json:"installs"`
	Reinstalls uint64 `json:"reinstalls"`
	Swept      uint64 `json:"swept"`
	Reclaimed  uint64 `json:"reclaimed"`
	Sweeps     uint64 `json:"sweeps"`
	Rejected   uint64 `json:"rejected"`

	// ShardEntries holds the entry count per shard, indexed by shard.
	ShardEntries []int `json:"shard_entries,omitempty"`
}

// Source is anything that can produce a Snapshot.
type Source interface {
	Stats() Snapshot
}

// Live returns the number of entries whose instance is still reachable.
func (s Snapshot) Live() int {
	if s.Stale > s.Entries {
		return 0
	}
	return s.Entries - s.Stale
}

// Lookups returns the number of successful intern calls.
func (s Snapshot) Lookups() uint64 {
	return s.Hits + s.Installs + s.Reinstalls
}

// HitRate returns the percentage of lookups served by an existing live entry.
func (s Snapshot) HitRate() float64 {
	lookups := s.Lookups()
	if lookups == 0 {
		return 0
	}
	return (float64(s.Hits) / float64(lookups)) * 100
}

// Render formats the snapshot as a single log-friendly line.
func (s Snapshot) Render() string {
	parts := []string{
		fmt.Sprintf("entries=%d", s.Entries),
		fmt.Sprintf("stale=%d", s.Stale),
		fmt.Sprintf("hits=%d", s.Hits),
		fmt.Sprintf("installs=%d", s.Installs),
		fmt.Sprintf("reinstalls=%d", s.Reinstalls),
		fmt.Sprintf("hit_rate=%.1f%%", s.HitRate()),
		fmt.Sprintf("swept=%d", s.Swept),
		fmt.Sprintf("reclaimed=%d", s.Reclaimed),
	}
	if s.Rejected > 0 {
		parts = append(parts, fmt.Sprintf("rejected=%d", s.Rejected))
	}
	if len(s.ShardEntries) > 0 {
		parts = append(parts, fmt.Sprintf("busiest_shards=%s", FormatShardLoad(s.ShardEntries, 3)))
	}
	return strings.Join(parts, " | ")
}

// FormatShardLoad lists the most populated shards as "index=count" pairs.
func FormatShardLoad(entries []int, limit int) string {
	if limit <= 0 {
		limit = len(entries)
	}
	type item struct {
		shard int
		count int
	}
	items := make([]item, 0, len(entries))
	for shard, count := range entries {
		items = append(items, item{shard: shard, count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count == items[j].count {
			return items[i].shard < items[j].shard
		}
		return items[i].count > items[j].count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	formatted := make([]string, 0, len(items))
	for _, it := range items {
		formatted = append(formatted, fmt.Sprintf("%d=%d", it.shard, it.count))
	}
	return strings.Join(formatted, ", ")
}
