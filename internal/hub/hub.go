// Package hub tracks which live viewers are attached to which graph and
// fans mutation events out to them. Membership is ephemeral: nothing here
// is persisted, and a restarted process starts with an empty registry. A
// viewer that reconnects re-fetches graph state from the store instead of
// replaying history.
package hub

import "sync"

// Conn is one live viewer channel. WriteEvent must be safe to call from the
// hub's broadcasting goroutine; implementations that write to a network
// socket should buffer internally and fail fast rather than block.
type Conn interface {
	WriteEvent(Event) error
	Close() error
}

// room is the set of connections viewing one graph. Each room has its own
// lock so traffic on one graph never contends with another.
type room struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
}

// Hub maps graph IDs to rooms of connected viewers.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func New() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// Join registers a connection as a viewer of the given graph.
func (h *Hub) Join(graphID string, c Conn) {
	h.mu.Lock()
	r, ok := h.rooms[graphID]
	if !ok {
		r = &room{conns: make(map[Conn]struct{})}
		h.rooms[graphID] = r
	}
	// Registry lock is held across the insert so a concurrent Leave cannot
	// drop the room between lookup and membership.
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
	h.mu.Unlock()
}

// Leave removes a connection from the graph's room. Empty rooms are dropped
// from the registry. Leaving twice, or leaving a room never joined, is a
// no-op so disconnect paths do not need to coordinate.
func (h *Hub) Leave(graphID string, c Conn) {
	h.mu.Lock()
	r, ok := h.rooms[graphID]
	if !ok {
		h.mu.Unlock()
		return
	}
	r.mu.Lock()
	delete(r.conns, c)
	empty := len(r.conns) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, graphID)
	}
	h.mu.Unlock()
}

// Broadcast delivers the event to every viewer of the graph, including the
// originator. A connection whose delivery fails is closed and removed; the
// remaining deliveries still happen. Broadcasts for the same graph are
// serialized, so viewers observe them in issue order.
func (h *Hub) Broadcast(graphID string, evt Event) {
	h.mu.RLock()
	r, ok := h.rooms[graphID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	var failed []Conn
	for c := range r.conns {
		if err := c.WriteEvent(evt); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		delete(r.conns, c)
		_ = c.Close()
	}
	r.mu.Unlock()
}

// SendDirect delivers an event to one connection only, for ping replies and
// per-connection errors. A failed direct send is surfaced to the caller but
// does not touch the registry; the read loop owns connection teardown.
func (h *Hub) SendDirect(c Conn, evt Event) error {
	return c.WriteEvent(evt)
}

// ViewerCount reports how many connections are currently viewing a graph.
func (h *Hub) ViewerCount(graphID string) int {
	h.mu.RLock()
	r, ok := h.rooms[graphID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
