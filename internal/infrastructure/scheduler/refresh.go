// Package scheduler drives periodic cache-bypassing refreshes while a remote
// view is active.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/grimoiredev/grimoire/internal/ports"
)

// DefaultInterval is the refresh cadence applied when none is configured.
const DefaultInterval = 30 * time.Second

// RefreshFunc performs one forced refresh cycle.
type RefreshFunc func(ctx context.Context)

// Refresh owns its timer explicitly: the code path that switches view or
// collection context starts and stops it, so no timer outlives its context.
type Refresh struct {
	interval time.Duration
	run      RefreshFunc
	logger   ports.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRefresh builds a stopped scheduler.
func NewRefresh(interval time.Duration, run RefreshFunc, log ports.Logger) *Refresh {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresh{interval: interval, run: run, logger: log}
}

// Start begins periodic refreshing. Starting a running scheduler is a no-op.
func (r *Refresh) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.logger != nil {
					r.logger.Debug("scheduled refresh tick", nil)
				}
				r.run(ctx)
			}
		}
	}(r.done)
}

// Stop cancels the timer and waits for any in-progress cycle to return, so a
// late result never lands on a torn-down context.
func (r *Refresh) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the scheduler is active.
func (r *Refresh) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
