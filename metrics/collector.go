// Package metrics exposes pool statistics to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RowanDark/internpool/stats"
)

// Collector reads a fresh snapshot from its source on every scrape.
type Collector struct {
	source stats.Source

	entries      *prometheus.Desc
	stale        *prometheus.Desc
	shards       *prometheus.Desc
	shardEntries *prometheus.Desc
	hits         *prometheus.Desc
	installs     *prometheus.Desc
	reinstalls   *prometheus.Desc
	swept        *prometheus.Desc
	reclaimed    *prometheus.Desc
	sweeps       *prometheus.Desc
	rejected     *prometheus.Desc
}

// NewCollector returns a collector for src. namespace prefixes every metric
// name and defaults to "internpool".
func NewCollector(src stats.Source, namespace string) *Collector {
	if namespace == "" {
		namespace = "internpool"
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:       src,
		entries:      desc("entries", "Entries in the canonical table, live or stale."),
		stale:        desc("stale_entries", "Entries whose canonical instance has been reclaimed."),
		shards:       desc("shards", "Number of table shards."),
		shardEntries: desc("shard_entries", "Entries per shard.", "shard"),
		hits:         desc("hits_total", "Intern calls served by an existing live instance."),
		installs:     desc("installs_total", "Canonical instances installed for new content."),
		reinstalls:   desc("reinstalls_total", "Canonical instances installed over a stale entry."),
		swept:        desc("swept_total", "Stale entries removed by sweeps."),
		reclaimed:    desc("reclaimed_total", "Stale entries removed by reclamation notifications."),
		sweeps:       desc("sweeps_total", "Completed sweep calls."),
		rejected:     desc("rejected_total", "Intern calls that failed because the host ran out of weak handles."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.stale
	ch <- c.shards
	ch <- c.shardEntries
	ch <- c.hits
	ch <- c.installs
	ch <- c.reinstalls
	ch <- c.swept
	ch <- c.reclaimed
	ch <- c.sweeps
	ch <- c.rejected
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Stats()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.entries, float64(snap.Entries))
	gauge(c.stale, float64(snap.Stale))
	gauge(c.shards, float64(snap.Shards))
	for shard, count := range snap.ShardEntries {
		gauge(c.shardEntries, float64(count), strconv.Itoa(shard))
	}
	counter(c.hits, snap.Hits)
	counter(c.installs, snap.Installs)
	counter(c.reinstalls, snap.Reinstalls)
	counter(c.swept, snap.Swept)
	counter(c.reclaimed, snap.Reclaimed)
	counter(c.sweeps, snap.Sweeps)
	counter(c.rejected, snap.Rejected)
}

// Register adds a collector for src to reg.
func Register(reg prometheus.Registerer, src stats.Source, namespace string) (*Collector, error) {
	c := NewCollector(src, namespace)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
