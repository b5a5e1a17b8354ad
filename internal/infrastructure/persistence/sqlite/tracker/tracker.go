package tracker

import (
	"sync"

	"comicshelf/internal/ports"
)

// Tracker keeps a version counter per table and a channel that is closed and
// replaced on every change, so any number of readers can wait on it.
type Tracker struct {
	mu     sync.Mutex
	tables map[string]*tableState
}

type tableState struct {
	version uint64
	changed chan struct{}
}

var _ ports.InvalidationTracker = (*Tracker)(nil)

func New() *Tracker {
	return &Tracker{tables: make(map[string]*tableState)}
}

func (t *Tracker) state(table string) *tableState {
	st, ok := t.tables[table]
	if !ok {
		st = &tableState{changed: make(chan struct{})}
		t.tables[table] = st
	}
	return st
}

func (t *Tracker) Version(table string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(table).version
}

func (t *Tracker) Changed(table string) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(table).changed
}

func (t *Tracker) Notify(tables ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		if _, dup := seen[table]; dup {
			continue
		}
		seen[table] = struct{}{}

		st := t.state(table)
		st.version++
		close(st.changed)
		st.changed = make(chan struct{})
	}
}
