package redisx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrLeaseLost = errors.New("redis lease lost")

// LeaseLock is a Redis-backed lease that lets several relay instances share
// one outbox: only the holder runs a relay iteration. The expiry bounds how
// long a crashed holder blocks the others. A live holder renews the lease
// every third of the expiry; if a renewal fails the held context is
// cancelled with ErrLeaseLost before the lease can lapse.
type LeaseLock struct {
	rs     *redsync.Redsync
	name   string
	expiry time.Duration
}

func NewLeaseLock(client *redis.Client, name string, expiry time.Duration) *LeaseLock {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &LeaseLock{
		rs:     redsync.New(goredis.NewPool(client)),
		name:   name,
		expiry: expiry,
	}
}

func (l *LeaseLock) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	mutex := l.rs.NewMutex(l.name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("redis lease %s: %w", l.name, err)
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.renew(held, mutex, cancel, stop)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-stopped
			cancel(nil)
			unlockCtx, cancelUnlock := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelUnlock()
			_, _ = mutex.UnlockContext(unlockCtx)
		})
	}
	return held, release, true, nil
}

func (l *LeaseLock) renew(ctx context.Context, mutex *redsync.Mutex, lose context.CancelCauseFunc, stop <-chan struct{}) {
	interval := l.expiry / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				lose(errors.Join(fmt.Errorf("%w: %s", ErrLeaseLost, l.name), err))
				return
			}
		}
	}
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	return errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed)
}
