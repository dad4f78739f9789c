// Package accountlock serializes transfers touching the same accounts across processes.
package accountlock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/rs/zerolog"
)

//go:generate mockgen -source coordinator.go -destination coordinator_mock.go -package accountlock

// Lock is a held lease on a single key.
type Lock interface {
	Release(ctx context.Context) error
	HeldByCaller() bool
}

// Locker provides mutual exclusion on keys shared by every process.
type Locker interface {
	// TryAcquire waits up to wait for the key and holds it for at most lease.
	// It returns false without an error when the key stayed taken.
	TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (Lock, bool, error)
}

// Default lock timings.
const (
	DefaultWaitTimeout   = 5 * time.Second
	DefaultLeaseDuration = 10 * time.Second
)

// Key returns the lock key of the account.
func Key(accountID int64) string {
	return fmt.Sprintf("account_lock:%d", accountID)
}

// Coordinator acquires the locks of both transfer accounts.
type Coordinator struct {
	locker Locker
	wait   time.Duration
	lease  time.Duration
}

// NewCoordinator returns Coordinator with the given lock timings.
//
// Zero timings fall back to the defaults.
func NewCoordinator(locker Locker, wait, lease time.Duration) *Coordinator {
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}

	if lease <= 0 {
		lease = DefaultLeaseDuration
	}

	return &Coordinator{
		locker: locker,
		wait:   wait,
		lease:  lease,
	}
}

// Pair holds the locks of two accounts.
type Pair struct {
	first  Lock
	second Lock
}

// AcquirePair locks both accounts, always the smaller id first.
//
// Every pair of accounts is locked in the same order no matter the transfer direction,
// so two opposite transfers can not wait on each other.
// When either lock can not be taken, the one already held is released and
// ErrLockAcquisition is returned.
func (c *Coordinator) AcquirePair(ctx context.Context, sourceID, destinationID int64) (*Pair, error) {
	l := zerolog.Ctx(ctx)

	firstID, secondID := sourceID, destinationID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := c.acquire(ctx, firstID)
	if err != nil {
		return nil, err
	}

	second, err := c.acquire(ctx, secondID)
	if err != nil {
		p := &Pair{first: first}
		p.Release(ctx)

		return nil, err
	}

	l.Debug().Int64("first", firstID).Int64("second", secondID).Msg("account locks acquired")

	return &Pair{first: first, second: second}, nil
}

func (c *Coordinator) acquire(ctx context.Context, accountID int64) (Lock, error) {
	key := Key(accountID)

	lock, ok, err := c.locker.TryAcquire(ctx, key, c.wait, c.lease)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("lock_key", key).Send()
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockAcquisition)
	}

	if !ok {
		zerolog.Ctx(ctx).Warn().Str("lock_key", key).Dur("wait", c.wait).Msg("lock not acquired")
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockAcquisition)
	}

	return lock, nil
}

// Release releases the locks still held by the caller, the second one first.
//
// It is safe to call on a nil or partially filled Pair and more than once.
func (p *Pair) Release(ctx context.Context) {
	if p == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	release(ctx, p.second)
	release(ctx, p.first)

	p.first, p.second = nil, nil
}

func release(ctx context.Context, lock Lock) {
	if lock == nil || !lock.HeldByCaller() {
		return
	}

	if err := lock.Release(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("release account lock")
	}
}
