package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPerKey_invalid_args(t *testing.T) {
	require.Nil(t, New(0, 1, time.Minute))
	require.Nil(t, New(1, 0, time.Minute))
	require.Nil(t, New(-1, 5, time.Minute))
}

func TestPerKey_nil_allows(t *testing.T) {
	var l *PerKey
	require.True(t, l.Allow("u1", time.Now()))
	require.Zero(t, l.Len())
}

func TestPerKey_burst_then_deny(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	require.True(t, l.Allow("u1", now))
	require.True(t, l.Allow("u1", now))
	require.False(t, l.Allow("u1", now))

	// Other keys have their own bucket.
	require.True(t, l.Allow("u2", now))
}

func TestPerKey_refill(t *testing.T) {
	l := New(10, 1, time.Minute)
	now := time.Now()

	require.True(t, l.Allow("u1", now))
	require.False(t, l.Allow("u1", now))
	require.True(t, l.Allow("u1", now.Add(150*time.Millisecond)))
}

func TestPerKey_blank_key_unlimited(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	for range 10 {
		require.True(t, l.Allow("  ", now))
	}
	require.Zero(t, l.Len())
}

func TestPerKey_idle_eviction(t *testing.T) {
	l := New(1000, 1000, time.Second)
	now := time.Now()

	l.Allow("old", now)
	require.Equal(t, 1, l.Len())

	// Eviction runs every 512 hits; push past the threshold well after
	// the idle TTL has elapsed.
	later := now.Add(time.Minute)
	for i := range 600 {
		l.Allow("fresh", later.Add(time.Duration(i)*time.Millisecond))
	}
	require.Equal(t, 1, l.Len())
	require.True(t, l.Allow("fresh", later.Add(time.Second)))
}
