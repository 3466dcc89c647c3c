package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLeaseLockExcludesSecondHolder(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	first := NewLeaseLock(client, "outbox:relay", 10*time.Second)
	second := NewLeaseLock(client, "outbox:relay", 10*time.Second)

	held, release, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lease must not be granted twice")

	release()
	assert.ErrorIs(t, held.Err(), context.Canceled)

	_, release2, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok, "lease must be free after release")
	release2()
}

func TestLeaseLockRenewsPastExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	const expiry = 300 * time.Millisecond

	first := NewLeaseLock(client, "outbox:relay", expiry)
	second := NewLeaseLock(client, "outbox:relay", expiry)

	held, release, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	// Advance the server clock well past the expiry in steps, leaving the
	// holder time to renew between them.
	for i := 0; i < 8; i++ {
		time.Sleep(250 * time.Millisecond)
		mr.FastForward(100 * time.Millisecond)
	}

	_, _, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a renewed lease must not be granted to a second holder")
	assert.NoError(t, held.Err())
}

func TestLeaseLockCancelsHeldWhenLost(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	const expiry = 300 * time.Millisecond

	first := NewLeaseLock(client, "outbox:relay", expiry)
	second := NewLeaseLock(client, "outbox:relay", expiry)

	held, release, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	// The holder stalls long enough on the server clock for the key to expire.
	mr.FastForward(expiry + time.Second)

	_, release2, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer release2()

	require.Eventually(t, func() bool { return held.Err() != nil }, 2*time.Second, 10*time.Millisecond,
		"the first holder must be told it lost the lease")
	assert.ErrorIs(t, context.Cause(held), ErrLeaseLost)
}

func TestReadyCheck(t *testing.T) {
	_, client := newTestRedis(t)
	assert.NoError(t, ReadyCheck(client)(context.Background()))
	assert.Error(t, ReadyCheck(nil)(context.Background()))
}
