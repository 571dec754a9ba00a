package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAllowsUpToLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := range 3 {
		result, err := store.Allow(ctx, "ip:203.0.113.9", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "attempt %d should pass", i+1)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "ip:203.0.113.9", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.Positive(t, result.RetryAfter(time.Now()))
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "ip:a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "ip:a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = store.Allow(ctx, "ip:b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryStoreWindowSlides(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "ip:a", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "ip:a", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(30 * time.Millisecond)

	result, err = store.Allow(ctx, "ip:a", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRetryAfterFloorsAtOneSecond(t *testing.T) {
	result := Result{ResetAt: time.Now().Add(200 * time.Millisecond)}
	assert.Equal(t, 1, result.RetryAfter(time.Now()))

	result = Result{ResetAt: time.Now().Add(45 * time.Second)}
	assert.InDelta(t, 45, result.RetryAfter(time.Now()), 1)
}
