package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRefill(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 2)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.allow("10.0.0.2"), "buckets are per ip")

	clock = clock.Add(250 * time.Millisecond)
	assert.False(t, rl.allow("10.0.0.1"), "half a token is not enough")

	clock = clock.Add(250 * time.Millisecond)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	clock = clock.Add(time.Hour)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"), "refill is capped at burst")
}

func TestRateLimiterCleanup(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return clock }

	rl.allow("10.0.0.1")
	clock = clock.Add(5 * time.Minute)
	rl.allow("10.0.0.2")

	clock = clock.Add(6 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
