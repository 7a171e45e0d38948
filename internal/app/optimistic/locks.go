package optimistic

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// entityLocks serializes mutations per server id. Waiters are admitted in arrival
// order (blocked channel senders are queued FIFO by the runtime).
type entityLocks struct {
	mu sync.Mutex
	m  map[domain.ServerID]*entityLock
}

type entityLock struct {
	slot chan struct{} // buffered, size 1: holding the lock = owning the slot
	refs int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{m: make(map[domain.ServerID]*entityLock)}
}

// Lock blocks until id is free or ctx is done. The returned func releases it.
func (l *entityLocks) Lock(ctx context.Context, id domain.ServerID) (func(), error) {
	l.mu.Lock()
	el, ok := l.m[id]
	if !ok {
		el = &entityLock{slot: make(chan struct{}, 1)}
		l.m[id] = el
	}
	el.refs++
	l.mu.Unlock()

	select {
	case el.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-el.slot
				l.release(id, el)
			})
		}, nil
	case <-ctx.Done():
		l.release(id, el)
		return nil, ctx.Err()
	}
}

func (l *entityLocks) release(id domain.ServerID, el *entityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el.refs--
	if el.refs == 0 {
		delete(l.m, id)
	}
}

// held reports how many callers hold or wait for id. Used by tests.
func (l *entityLocks) held(id domain.ServerID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[id]; ok {
		return el.refs
	}
	return 0
}
