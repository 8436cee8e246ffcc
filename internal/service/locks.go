package service

import "sync"

// tripLocks serializes operations per trip id. Updates for different
// trips proceed in parallel; updates for the same trip never race on
// leg advancement or flag writes. Entries are refcounted so the map
// does not grow with trip history.
type tripLocks struct {
	mu    sync.Mutex
	locks map[string]*tripLock
}

type tripLock struct {
	mu   sync.Mutex
	refs int
}

func newTripLocks() *tripLocks {
	return &tripLocks{locks: make(map[string]*tripLock)}
}

// lock acquires the mutex for the given trip and returns the unlock
// function.
func (t *tripLocks) lock(tripID string) func() {
	t.mu.Lock()
	l, ok := t.locks[tripID]
	if !ok {
		l = &tripLock{}
		t.locks[tripID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, tripID)
		}
		t.mu.Unlock()
	}
}
