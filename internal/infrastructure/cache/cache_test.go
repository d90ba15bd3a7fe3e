package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsHitUntilTTLElapses(t *testing.T) {
	now := time.Now()
	c := New[string](time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Put("commits/1", "value")

	got, hit := c.Get("commits/1", false)
	require.True(t, hit)
	assert.Equal(t, "value", got)

	now = now.Add(59 * time.Second)
	_, hit = c.Get("commits/1", false)
	assert.True(t, hit)

	now = now.Add(time.Second)
	_, hit = c.Get("commits/1", false)
	assert.False(t, hit, "entry at exactly TTL is stale")
}

func TestForceRefreshBypassesFreshEntry(t *testing.T) {
	c := New[string](time.Minute, 10)
	c.Put("pending/1", "value")

	_, hit := c.Get("pending/1", true)
	assert.False(t, hit)
}

func TestInvalidateRemovesEntryUnconditionally(t *testing.T) {
	c := New[int](time.Minute, 10)
	c.Put("commits/7", 42)
	c.Invalidate("commits/7")

	_, hit := c.Get("commits/7", false)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestCapacityEvictsLeastRecentlyFetched(t *testing.T) {
	now := time.Now()
	c := New[int](time.Hour, 3)
	c.now = func() time.Time { return now }

	for i, key := range []string{"a", "b", "c", "d"} {
		now = now.Add(time.Second)
		c.Put(key, i)
	}

	require.Equal(t, 3, c.Len())
	_, hit := c.Get("a", false)
	assert.False(t, hit, "oldest-fetched entry should be evicted")
	for _, key := range []string{"b", "c", "d"} {
		_, hit := c.Get(key, false)
		assert.True(t, hit, "key %s should survive", key)
	}
}

func TestPutDropsExpiredEntriesBeforeCapacityCheck(t *testing.T) {
	now := time.Now()
	c := New[int](time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Put("stale", 1)
	now = now.Add(2 * time.Minute)
	c.Put("fresh", 2)

	assert.Equal(t, 1, c.Len())
	_, hit := c.Get("fresh", false)
	assert.True(t, hit)
}

func TestEmptyKeyIsNeverStoredOrHit(t *testing.T) {
	c := New[string](time.Minute, 10)
	c.Put("", "value")

	_, hit := c.Get("", false)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}
