package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type recordConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (c *recordConn) WriteEvent(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	c.events = append(c.events, evt)
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestBroadcastReachesAllViewersIncludingOriginator(t *testing.T) {
	h := New()
	a, b, c := &recordConn{}, &recordConn{}, &recordConn{}
	h.Join("g1", a)
	h.Join("g1", b)
	h.Join("g1", c)

	h.Broadcast("g1", Event{Type: EventNodeMoved, GraphID: "g1"})

	for i, conn := range []*recordConn{a, b, c} {
		if got := conn.received(); len(got) != 1 || got[0].Type != EventNodeMoved {
			t.Fatalf("viewer %d: got %v", i, got)
		}
	}
}

func TestBroadcastIsolatedAcrossGraphs(t *testing.T) {
	h := New()
	a, b := &recordConn{}, &recordConn{}
	h.Join("g1", a)
	h.Join("g2", b)

	h.Broadcast("g1", Event{Type: EventGraphUpdated, GraphID: "g1"})

	if len(a.received()) != 1 {
		t.Fatalf("g1 viewer missed its event")
	}
	if len(b.received()) != 0 {
		t.Fatalf("g2 viewer got a g1 event")
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := New()
	h.Broadcast("nobody", Event{Type: EventGraphUpdated})
}

func TestFailedDeliveryPrunesConnAndContinues(t *testing.T) {
	h := New()
	good1, bad, good2 := &recordConn{}, &recordConn{fail: true}, &recordConn{}
	h.Join("g1", good1)
	h.Join("g1", bad)
	h.Join("g1", good2)

	h.Broadcast("g1", Event{Type: EventNodeUpdated})

	if len(good1.received()) != 1 || len(good2.received()) != 1 {
		t.Fatalf("healthy viewers must still receive the event")
	}
	if !bad.closed {
		t.Fatalf("failed conn was not closed")
	}
	if h.ViewerCount("g1") != 2 {
		t.Fatalf("failed conn still registered: %d viewers", h.ViewerCount("g1"))
	}
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	h := New()
	c := &recordConn{}
	h.Join("g1", c)
	if h.ViewerCount("g1") != 1 {
		t.Fatalf("join not visible")
	}
	h.Leave("g1", c)
	if h.ViewerCount("g1") != 0 {
		t.Fatalf("leave not visible")
	}
	// Leaving twice, or a room never joined, must not panic.
	h.Leave("g1", c)
	h.Leave("never", c)
}

func TestBroadcastOrderPreservedPerViewer(t *testing.T) {
	h := New()
	c := &recordConn{}
	h.Join("g1", c)

	for i := 0; i < 20; i++ {
		payload, _ := json.Marshal(NodeMovedPayload{NodeID: "n1", X: float64(i)})
		h.Broadcast("g1", Event{Type: EventNodeMoved, Payload: payload})
	}

	got := c.received()
	if len(got) != 20 {
		t.Fatalf("expected 20 events, got %d", len(got))
	}
	for i, evt := range got {
		var p NodeMovedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if p.X != float64(i) {
			t.Fatalf("event %d out of order: x=%v", i, p.X)
		}
	}
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &recordConn{}
			for j := 0; j < 100; j++ {
				h.Join("g1", c)
				h.Broadcast("g1", Event{Type: EventPing})
				h.Leave("g1", c)
			}
		}()
	}
	wg.Wait()
	if h.ViewerCount("g1") != 0 {
		t.Fatalf("viewers leaked: %d", h.ViewerCount("g1"))
	}
}
