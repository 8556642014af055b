package service

import "sync"

// Locks serializes operations per checklist id. Operations on different
// checklists proceed independently; entries are dropped once no goroutine
// holds or waits on them.
type Locks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for the given checklist id, creating it on
// first use.
func (l *Locks) Lock(id string) {
	l.mu.Lock()
	e := l.held[id]
	if e == nil {
		e = &lockEntry{}
		l.held[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for the given checklist id.
func (l *Locks) Unlock(id string) {
	l.mu.Lock()
	e := l.held[id]
	e.refs--
	if e.refs == 0 {
		delete(l.held, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
