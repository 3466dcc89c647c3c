package outbox

import (
	"context"
	"sync"
)

// Locker grants exclusive relay runs without blocking. ok is false when the
// lock is held elsewhere. When ok is true, held is a child of ctx that is
// cancelled if the lock is lost before release, and release must be called
// once. Work done under the lock must use held.
type Locker interface {
	TryLock(ctx context.Context) (held context.Context, release func(), ok bool, err error)
}

// LocalLock excludes overlapping relay runs inside one process only.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, nil, false, nil
	}
	held, cancel := context.WithCancel(ctx)
	return held, func() {
		cancel()
		l.mu.Unlock()
	}, true, nil
}

// Locks acquires every locker in order and releases in reverse. Put the
// cheap in-process lock first so a busy process never touches the shared one.
// Losing any lock in the chain cancels the combined held context.
func Locks(lockers ...Locker) Locker {
	return lockChain(lockers)
}

type lockChain []Locker

func (c lockChain) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	held := ctx
	for _, l := range c {
		h, release, ok, err := l.TryLock(held)
		if err != nil || !ok {
			releaseAll()
			return nil, nil, false, err
		}
		releases = append(releases, release)
		held = h
	}
	return held, releaseAll, true, nil
}
