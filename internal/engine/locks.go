package engine

import (
	"context"
	"sync"
	"time"
)

// lockTable provides per-key mutual exclusion with bounded acquisition.
// Attach/score/transition for a single target runs under its key; distinct
// keys proceed fully in parallel. Entries are reclaimed once unreferenced so
// the table does not grow with target history.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held, the timeout elapses, or ctx is
// cancelled. On success it returns a release function that must be called
// exactly once.
func (t *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.ch
				t.put(key, e)
			})
		}
		return release, nil
	case <-timer.C:
		t.put(key, e)
		return nil, &ConcurrencyTimeoutError{Key: key}
	case <-ctx.Done():
		t.put(key, e)
		return nil, ctx.Err()
	}
}

func (t *lockTable) put(key string, e *lockEntry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()
}
