package pool

import (
	"context"
	"errors"
)

// Start launches the periodic sweeper when a sweep interval was configured.
// The sweeper runs until ctx is done or the pool is closed.
func (p *Pool) Start(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if p.sweepInterval <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Close sets closed before it takes mu to stop the sweeper
	if p.closed.Load() {
		return ErrClosed
	}
	if p.cancel != nil {
		return errors.New("sweeper already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	ticker := p.clock.Ticker(p.sweepInterval)
	p.cancel = cancel
	p.stopped = stopped

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Sweep(p.sweepBudget)
			}
		}
	}()

	p.logger.Infof("Sweeper started (interval %s, budget %d)", p.sweepInterval, p.sweepBudget)
	return nil
}

func (p *Pool) stopSweeper() {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.cancel, p.stopped = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	p.logger.Infof("Sweeper stopped")
}
