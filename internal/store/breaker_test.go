package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBreaker(2, 10*time.Second)
	b.now = func() time.Time { return clock }

	require.True(t, b.TryAcquire())
	b.OnFailure()
	require.True(t, b.TryAcquire())
	b.OnFailure()

	require.True(t, b.Open())
	require.False(t, b.TryAcquire())

	// cool-down elapsed: exactly one probe
	clock = clock.Add(11 * time.Second)
	require.True(t, b.TryAcquire())
	require.False(t, b.TryAcquire())

	b.OnSuccess()
	require.False(t, b.Open())
	require.True(t, b.TryAcquire())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return clock }

	b.OnFailure()
	clock = clock.Add(2 * time.Second)
	require.True(t, b.TryAcquire())
	b.OnFailure()

	require.True(t, b.Open())
	require.False(t, b.TryAcquire())
}

func TestBreakerReleaseFreesProbe(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBreaker(1, 10*time.Second)
	b.now = func() time.Time { return clock }

	require.True(t, b.TryAcquire())
	b.OnFailure()
	clock = clock.Add(11 * time.Second)

	require.True(t, b.TryAcquire())
	require.False(t, b.TryAcquire())

	// probe abandoned: the next caller may probe instead
	b.Release()
	require.True(t, b.TryAcquire())
}
