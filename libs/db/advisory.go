package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AdvisoryLock elects a single relay across instances sharing one Postgres.
// Session-level advisory locks belong to a connection, so the connection that
// took the lock is held until release.
type AdvisoryLock struct {
	pool *Pool
	key  int64
}

func NewAdvisoryLock(pool *Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

func (l *AdvisoryLock) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	if l == nil || l.pool == nil || l.pool.Pool == nil {
		return nil, nil, false, errors.New("advisory lock: db not configured")
	}
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("advisory lock: acquire conn: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
		conn.Release()
		return nil, nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, nil, false, nil
	}

	held, cancel := context.WithCancel(ctx)
	release := func() {
		cancel()
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			// The lock dies with the session; drop the connection so it is not reused.
			_ = conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}
	return held, release, true, nil
}
