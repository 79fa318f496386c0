package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIdempotencyKeyRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := uuid.New().String()

	_, found, err := c.GetOrderIDForKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetOrderIDForKey(ctx, key, 42, time.Minute))

	id, found, err := c.GetOrderIDForKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), id)
}

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := "checkout:" + uuid.New().String()

	ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key))

	ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, key))
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	_, err := NewClient("127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
