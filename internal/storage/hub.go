package storage

import (
	"sync"
)

// hub fans snapshots out to subscribers of each collection
type hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[Collection]map[int]Listener
}

func newHub() *hub {
	return &hub{listeners: make(map[Collection]map[int]Listener)}
}

func (h *hub) add(c Collection, fn Listener) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if h.listeners[c] == nil {
		h.listeners[c] = make(map[int]Listener)
	}
	h.listeners[c][h.nextID] = fn
	return h.nextID
}

func (h *hub) remove(c Collection, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners[c], id)
}

func (h *hub) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = make(map[Collection]map[int]Listener)
}

// publish delivers snap to every listener of its collection. Listeners run
// on the caller's goroutine and must not call back into the store while
// holding their own locks.
func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	fns := make([]Listener, 0, len(h.listeners[snap.Collection]))
	for _, fn := range h.listeners[snap.Collection] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(Snapshot{Collection: snap.Collection, Revision: snap.Revision, Docs: cloneDocs(snap.Docs)})
	}
}
