// Package redislock implements account locks on Redis with the redsync algorithm.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-petr/fund-transfer/internal/accountlock"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockNotHeld is returned when releasing a lock whose lease was lost.
var ErrLockNotHeld = errors.New("lock was not held or already expired")

// DefaultRetryDelay is the pause between two acquisition attempts.
const DefaultRetryDelay = 50 * time.Millisecond

const maxTries = 1000

// Locker hands out redsync mutexes.
type Locker struct {
	rs         *redsync.Redsync
	retryDelay time.Duration
}

// NewLocker returns Locker using the redis client.
func NewLocker(client redis.UniversalClient, retryDelay time.Duration) *Locker {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Locker{
		rs:         redsync.New(goredis.NewPool(client)),
		retryDelay: retryDelay,
	}
}

// TryAcquire polls for the key until it is taken or wait elapses.
func (l *Locker) TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (accountlock.Lock, bool, error) {
	tries := int(wait/l.retryDelay) + 1
	if tries > maxTries {
		tries = maxTries
	}

	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(lease),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := mutex.LockContext(waitCtx); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}

		if isContention(err) || waitCtx.Err() != nil {
			zerolog.Ctx(ctx).Debug().Str("lock_key", key).Msg("lock already held by another process")
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}

	return &Lock{mutex: mutex}, true, nil
}

// isContention reports whether err means the key is held by someone else.
func isContention(err error) bool {
	return errors.Is(err, redsync.ErrFailed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "lock already taken")
}

// Lock is a lease on a single key.
type Lock struct {
	mutex *redsync.Mutex
}

// Release gives the key back if the lease is still ours.
func (l *Lock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("release %s: %w", l.mutex.Name(), err)
	}

	if !ok {
		return ErrLockNotHeld
	}

	return nil
}

// HeldByCaller reports whether the lease has not expired yet.
func (l *Lock) HeldByCaller() bool {
	return time.Now().Before(l.mutex.Until())
}
