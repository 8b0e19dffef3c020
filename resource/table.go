package resource

import (
	"sync"
)

type entry struct {
	value any
	kind  Kind
	valid bool
}

// Table stores values behind handles, reusing freed slots.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert adds a value and returns its handle, or 0 if the table is closed.
func (t *Table) Insert(kind Kind, value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}

	e := entry{kind: kind, value: value, valid: true}
	var handle Handle
	if n := len(t.freeList); n > 0 {
		handle = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: handle, Kind: kind, Value: value})
	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	e, ok := t.lookup(handle)
	return e.value, ok
}

// GetKind retrieves a value only if it was inserted with the given kind.
func (t *Table) GetKind(handle Handle, kind Kind) (any, bool) {
	e, ok := t.lookup(handle)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

func (t *Table) lookup(handle Handle) (entry, bool) {
	if handle == 0 {
		return entry{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return entry{}, false
	}
	return t.entries[idx], true
}

// Remove drops an entry and returns (value, true) if it existed.
func (t *Table) Remove(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.Lock()
	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return nil, false
	}
	e := t.entries[idx]
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, handle)
	t.mu.Unlock()

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: handle, Kind: e.kind, Value: e.value})
	return e.value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live entries in handle order.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.RLock()
	live := make([]entry, len(t.entries))
	copy(live, t.entries)
	t.mu.RUnlock()

	for i, e := range live {
		if e.valid && !fn(Handle(i+1), e.kind, e.value) {
			return
		}
	}
}

// Clear drops all entries.
func (t *Table) Clear() {
	var handles []Handle
	t.Each(func(h Handle, _ Kind, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close drops all entries and stops accepting inserts.
func (t *Table) Close() error {
	t.Clear()
	t.mu.Lock()
	t.closed = true
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
