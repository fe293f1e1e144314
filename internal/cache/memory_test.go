package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clock.now
	return m, clock
}

func TestMemorySaveGetExpire(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	require.NoError(t, m.Save(ctx, "otp:a@b.co", "hash", 10*time.Minute))

	val, ok, err := m.Get(ctx, "otp:a@b.co")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hash", val)

	clock.t = clock.t.Add(10 * time.Minute)
	_, ok, err = m.Get(ctx, "otp:a@b.co")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	require.NoError(t, m.Save(ctx, "k", "v", time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()
	limiter := NewLimiter(m, "contact", 5, time.Hour)

	for i := 0; i < 5; i++ {
		ok, _, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, retry, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, retry)

	ok, _, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own window")

	clock.t = clock.t.Add(time.Hour)
	ok, _, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window resets")
}

func TestLimitersDoNotShareCounters(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	login := NewLimiter(m, "login", 1, time.Minute)
	forgot := NewLimiter(m, "forgot", 1, time.Minute)

	ok, _, _ := login.Allow(ctx, "ip")
	assert.True(t, ok)
	ok, _, _ = forgot.Allow(ctx, "ip")
	assert.True(t, ok)
	ok, _, _ = login.Allow(ctx, "ip")
	assert.False(t, ok)
}

func TestMemorySweepDropsExpired(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	for i := 0; i < sweepThreshold; i++ {
		require.NoError(t, m.Save(ctx, fmt.Sprintf("k%d", i), "v", time.Second))
	}
	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, m.Save(ctx, "fresh", "v", time.Minute))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.entries, 1)
}
