package stats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RowanDark/internpool/logging"
)

type Options struct {
	Source   Source
	Logger   *logging.Logger
	Interval time.Duration
	Clock    clock.Clock
}

// Reporter periodically logs snapshots taken from a Source.
type Reporter struct {
	source   Source
	logger   *logging.Logger
	interval time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	ticker   *clock.Ticker
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewReporter(opts Options) *Reporter {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Reporter{
		source:   opts.Source,
		logger:   opts.Logger,
		interval: interval,
		clock:    clk,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins logging on every interval until ctxDone is closed or Stop is called.
func (r *Reporter) Start(ctxDone <-chan struct{}) {
	if r == nil || r.source == nil || r.logger == nil {
		return
	}

	r.mu.Lock()
	r.ticker = r.clock.Ticker(r.interval)
	ticker := r.ticker
	r.mu.Unlock()

	go func() {
		defer close(r.stopped)
		for {
			select {
			case <-ticker.C:
				r.logSnapshot(false)
			case <-ctxDone:
				return
			case <-r.done:
				return
			}
		}
	}()
}

// Stop halts the reporting loop, logs a final line and returns the last snapshot.
func (r *Reporter) Stop() Snapshot {
	if r == nil || r.source == nil {
		return Snapshot{}
	}
	r.stopOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		started := r.ticker != nil
		if started {
			r.ticker.Stop()
		}
		r.mu.Unlock()
		if started {
			<-r.stopped
		}
		r.logSnapshot(true)
	})
	return r.source.Stats()
}

func (r *Reporter) logSnapshot(final bool) {
	if r == nil || r.logger == nil {
		return
	}
	snapshot := r.source.Stats()
	if final {
		r.logger.Infof("Pool statistics: %s", snapshot.Render())
		return
	}
	r.logger.Infof("Pool stats: %s", snapshot.Render())
}
