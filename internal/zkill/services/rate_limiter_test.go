package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSingleInFlight(t *testing.T) {
	rl := NewRateLimiter()

	require.NoError(t, rl.Acquire())
	assert.Error(t, rl.Acquire(), "second acquire while in flight must fail")

	rl.Release()
	assert.NoError(t, rl.Acquire())
	rl.Release()
}

func TestRateLimiterEnforcesMinInterval(t *testing.T) {
	rl := NewRateLimiter()

	require.NoError(t, rl.Acquire())
	rl.Release()

	start := time.Now()
	require.NoError(t, rl.Acquire())
	rl.Release()

	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond,
		"second request should wait out the minimum interval")
}

func TestRateLimiterBackoffDoublesAndCaps(t *testing.T) {
	rl := NewRateLimiter()

	assert.Equal(t, 5*time.Second, rl.GetBackoffDuration())

	expected := []time.Duration{10, 20, 40, 80, 80, 80}
	for i, want := range expected {
		rl.IncrementBackoff()
		assert.Equal(t, want*time.Second, rl.GetBackoffDuration(), "level %d", i+1)
	}
}

func TestRateLimiterAcquireResetsBackoff(t *testing.T) {
	rl := NewRateLimiter()

	rl.IncrementBackoff()
	rl.IncrementBackoff()
	require.Equal(t, 20*time.Second, rl.GetBackoffDuration())

	require.NoError(t, rl.Acquire())
	rl.Release()
	assert.Equal(t, 5*time.Second, rl.GetBackoffDuration(), "a successful acquire clears the backoff")
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter()

	require.NoError(t, rl.Acquire())
	rl.IncrementBackoff()
	rl.Reset()

	assert.NoError(t, rl.Acquire())
	assert.Equal(t, 5*time.Second, rl.GetBackoffDuration())
	rl.Release()
}
