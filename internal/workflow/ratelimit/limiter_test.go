package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenLimiter struct {
	err error
}

func (b *brokenLimiter) Allow(context.Context, string, int, time.Duration) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}
	return Result{Allowed: true, Remaining: 99}, nil
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	key := Key("seur", "10.0.0.1")

	for i := range 3 {
		res, err := m.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := m.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	other, err := m.Allow(ctx, Key("seur", "10.0.0.2"), 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "limits are per client IP")

	now = now.Add(61 * time.Second)
	res, err = m.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window slides")
}

func TestFallbackLimiter(t *testing.T) {
	ctx := context.Background()
	primary := &brokenLimiter{err: errors.New("redis: connection refused")}
	f := NewFallback(primary, nil)

	for range failureThreshold {
		res, err := f.Allow(ctx, "k", 100, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	assert.True(t, f.Degraded())

	primary.err = nil
	for range successThreshold {
		_, err := f.Allow(ctx, "k", 100, time.Minute)
		require.NoError(t, err)
	}
	assert.False(t, f.Degraded())
}
