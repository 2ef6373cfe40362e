package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("sentiment", "gpt-4o-mini", "the room is cold", map[string]string{"language": "en", "hotel_id": "h1"})
	b := Key("sentiment", "gpt-4o-mini", "the room is cold", map[string]string{"hotel_id": "h1", "language": "en"})
	assert.Equal(t, a, b, "param order must not change the key")

	c := Key("sentiment", "gpt-4o-mini", "the room is warm", map[string]string{"language": "en", "hotel_id": "h1"})
	assert.NotEqual(t, a, c)

	d := Key("completion", "gpt-4o-mini", "the room is cold", map[string]string{"language": "en", "hotel_id": "h1"})
	assert.NotEqual(t, a, d, "operation type is part of the key")
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	_, ok := c.Get(ctx, "op", "model", "content", nil)
	require.False(t, ok)

	c.Set(ctx, "op", "model", "content", nil, "payload")
	payload, ok := c.Get(ctx, "op", "model", "content", nil)
	require.True(t, ok)
	assert.Equal(t, "payload", payload)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	ctx := context.Background()

	c.Set(ctx, "op", "model", "content", nil, "payload")

	current = current.Add(59 * time.Second)
	_, ok := c.Get(ctx, "op", "model", "content", nil)
	assert.True(t, ok, "entry is alive before the TTL elapses")

	current = current.Add(2 * time.Second)
	_, ok = c.Get(ctx, "op", "model", "content", nil)
	assert.False(t, ok, "entry must expire after the TTL")
}

func TestMemoryCacheHitCount(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	c.Set(ctx, "op", "model", "content", nil, "payload")
	for i := 0; i < 3; i++ {
		_, ok := c.Get(ctx, "op", "model", "content", nil)
		require.True(t, ok)
	}
	assert.Equal(t, int64(3), c.HitCount("op", "model", "content", nil))
}
