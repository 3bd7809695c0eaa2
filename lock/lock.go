// ABOUTME: Per-key mutual exclusion for cell reconciliation
// ABOUTME: Redis SET NX locks across processes, with an in-process fallback
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrLockNotAcquired is returned when the wait timeout elapses before the lock frees up.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing or extending a lock that expired or changed hands.
	ErrLockNotHeld = errors.New("lock not held")
)

// Locker serializes work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Options tune lock acquisition.
type Options struct {
	// TTL is how long a redis lock lives without being extended.
	TTL time.Duration
	// Wait is how long to wait for a held lock before giving up.
	Wait time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 2 * time.Minute
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Second
	}
	return o
}

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisLocker holds locks in redis so concurrent service instances exclude each other.
type RedisLocker struct {
	rdb       redis.UniversalClient
	keyPrefix string
	opts      Options
	logger    *zap.Logger
}

// NewRedisLocker creates a redis-backed locker.
func NewRedisLocker(rdb redis.UniversalClient, keyPrefix string, opts Options, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "cellsync:lock:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{rdb: rdb, keyPrefix: keyPrefix, opts: opts.withDefaults(), logger: logger}
}

// Lock is a held redis lock.
type Lock struct {
	rdb   redis.UniversalClient
	key   string
	value string
}

// Acquire makes a single attempt to take the lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (*Lock, error) {
	lockKey := l.keyPrefix + key
	value := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, lockKey, value, l.opts.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.logger.Debug("acquired lock", zap.String("key", lockKey))
	return &Lock{rdb: l.rdb, key: lockKey, value: value}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until the wait timeout.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (*Lock, error) {
	deadline := time.Now().Add(l.opts.Wait)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
	}
}

// WithLock runs fn while holding key, extending the lock until fn returns.
// If the lock is lost mid-run, the context passed to fn is cancelled and
// ErrLockNotHeld is returned alongside fn's own error.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := l.TryAcquire(ctx, key)
	if err != nil {
		return err
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.opts.TTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := lock.Extend(context.Background(), l.opts.TTL)
				if errors.Is(err, ErrLockNotHeld) {
					l.logger.Error("lock lost while held", zap.String("key", lock.key))
					cancel(ErrLockNotHeld)
					return
				}
				if err != nil {
					l.logger.Warn("failed to extend lock", zap.String("key", lock.key), zap.Error(err))
				}
			}
		}
	}()

	defer func() {
		close(stop)
		<-done
		if err := lock.Release(context.Background()); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", lock.key), zap.Error(err))
		}
	}()

	err = fn(lockCtx)
	if errors.Is(context.Cause(lockCtx), ErrLockNotHeld) {
		return errors.Join(fmt.Errorf("lock %q lost: %w", key, ErrLockNotHeld), err)
	}
	return err
}

// Release deletes the lock if this holder still owns it.
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the lock's TTL if this holder still owns it.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lock.rdb, []string{lock.key}, lock.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// LocalLocker serializes keys within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot), wait: opts.withDefaults().Wait}
}

// WithLock runs fn while holding key.
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	s := l.ref(key)
	defer l.unref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockNotAcquired
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		s.refs--
		if s.refs == 0 {
			delete(l.slots, key)
		}
	}
}
