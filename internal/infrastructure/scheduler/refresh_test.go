package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grimoiredev/grimoire/internal/pkg/logger"
)

func TestRefreshRunsOnInterval(t *testing.T) {
	var ticks atomic.Int32
	r := NewRefresh(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}, logger.NewStd(false))

	r.Start(context.Background())
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopHaltsTicksDeterministically(t *testing.T) {
	var ticks atomic.Int32
	r := NewRefresh(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}, logger.NewStd(false))

	r.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	r.Stop()

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after Stop returns")
	assert.False(t, r.Running())
}

func TestStopIsIdempotentAndStartIsReentrant(t *testing.T) {
	r := NewRefresh(time.Hour, func(ctx context.Context) {}, logger.NewStd(false))

	r.Stop() // stopping a never-started scheduler is fine

	r.Start(context.Background())
	r.Start(context.Background()) // second start is a no-op
	assert.True(t, r.Running())
	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
}

func TestRefreshStopsWhenParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	r := NewRefresh(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}, logger.NewStd(false))

	r.Start(ctx)
	cancel()
	time.Sleep(30 * time.Millisecond)
	before := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, ticks.Load())
	r.Stop()
}
