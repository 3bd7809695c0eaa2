// ABOUTME: Tests for redis and local lockers
// ABOUTME: Uses miniredis for the redis path and goroutines to check exclusion
package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisLocker(rdb, "test:", opts, zap.NewNop()), mr
}

func TestRedisAcquireAndRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, Options{TTL: time.Minute})
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "cell:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:cell:1"))

	_, err = locker.Acquire(ctx, "cell:1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("test:cell:1"))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
}

func TestRedisReleaseDoesNotStealForeignLock(t *testing.T) {
	locker, mr := newRedisLocker(t, Options{TTL: time.Minute})
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "cell:1")
	require.NoError(t, err)

	require.NoError(t, mr.Set("test:cell:1", "someone-else"))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	assert.True(t, mr.Exists("test:cell:1"))
}

func TestRedisWithLockTimesOutWhileHeld(t *testing.T) {
	locker, _ := newRedisLocker(t, Options{TTL: time.Minute, Wait: 50 * time.Millisecond})
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "cell:1")
	require.NoError(t, err)
	defer held.Release(ctx)

	called := false
	err = locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}

func TestRedisWithLockReleasesAfterError(t *testing.T) {
	locker, mr := newRedisLocker(t, Options{TTL: time.Minute})
	ctx := context.Background()

	boom := errors.New("boom")
	err := locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("test:cell:1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:cell:1"))
}

func TestRedisWithLockCancelsWorkWhenLockIsLost(t *testing.T) {
	locker, mr := newRedisLocker(t, Options{TTL: 150 * time.Millisecond})
	ctx := context.Background()

	cancelled := false
	err := locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		require.NoError(t, mr.Set("test:cell:1", "someone-else"))
		select {
		case <-ctx.Done():
			cancelled = true
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})

	assert.True(t, cancelled, "work should stop once the lock changes hands")
	assert.ErrorIs(t, err, ErrLockNotHeld)
	assert.ErrorIs(t, err, context.Canceled)

	val, getErr := mr.Get("test:cell:1")
	require.NoError(t, getErr)
	assert.Equal(t, "someone-else", val)
}

func TestRedisWithLockKeepsLockAlive(t *testing.T) {
	locker, mr := newRedisLocker(t, Options{TTL: 150 * time.Millisecond})
	ctx := context.Background()

	err := locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:cell:1"))
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(Options{Wait: 5 * time.Second})
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Empty(t, locker.slots)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker(Options{Wait: 50 * time.Millisecond})
	ctx := context.Background()

	err := locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		return locker.WithLock(ctx, "cell:2", func(ctx context.Context) error { return nil })
	})
	require.NoError(t, err)

	err = locker.WithLock(ctx, "cell:1", func(ctx context.Context) error {
		return locker.WithLock(ctx, "cell:1", func(ctx context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}
