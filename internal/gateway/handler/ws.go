package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"graphscape/internal/hub"
	"graphscape/internal/store"

	"github.com/gorilla/websocket"
)

const (
	graphWSWriteWait = 10 * time.Second
	graphWSPongWait  = 60 * time.Second
	graphWSPingEvery = (graphWSPongWait * 9) / 10
)

var graphWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WSHandler serves the live-editing websocket endpoint. Each connection is
// scoped to one graph; mutation events from one viewer are replicated to all
// viewers of that graph and, for moves, written through to the store.
type WSHandler struct {
	hub   *hub.Hub
	store store.Store
}

func NewWSHandler(h *hub.Hub, st store.Store) *WSHandler {
	return &WSHandler{hub: h, store: st}
}

// wsConn adapts a websocket connection into the hub's Conn. Writes go through
// a buffered channel drained by a single writer goroutine, so the hub can
// fan out from any goroutine without interleaving frames.
type wsConn struct {
	writeCh chan hub.Event
	cancel  context.CancelFunc
}

func (c *wsConn) WriteEvent(evt hub.Event) error {
	select {
	case c.writeCh <- evt:
		return nil
	default:
		// A viewer that cannot drain its buffer is dropped rather than
		// allowed to stall delivery to the rest of the room.
		return errors.New("write buffer full")
	}
}

func (c *wsConn) Close() error {
	c.cancel()
	return nil
}

func (h *WSHandler) HandleGraphWS(w http.ResponseWriter, r *http.Request) {
	graphID := strings.TrimSpace(r.PathValue("id"))
	if graphID == "" {
		http.Error(w, "graph id is required", http.StatusBadRequest)
		return
	}

	conn, err := graphWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(graphWSPongWait)); err != nil {
		log.Printf("graph ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(graphWSPongWait))
	})

	viewer := &wsConn{
		writeCh: make(chan hub.Event, 32),
		cancel:  cancel,
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(graphWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-viewer.writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(graphWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(graphWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	h.hub.Join(graphID, viewer)
	defer h.hub.Leave(graphID, viewer)

	for {
		var evt hub.Event
		if err := conn.ReadJSON(&evt); err != nil {
			cancel()
			<-writerDone
			return
		}
		h.dispatch(ctx, graphID, viewer, evt)
	}
}

// dispatch routes one inbound event. Pings are answered on this connection
// only; mutations are persisted where they have a durable form and then
// replicated to every viewer of the graph.
func (h *WSHandler) dispatch(ctx context.Context, graphID string, viewer *wsConn, evt hub.Event) {
	switch {
	case evt.Type == hub.EventPing:
		_ = h.hub.SendDirect(viewer, hub.Event{Type: hub.EventPong})
	case hub.IsMutation(evt.Type):
		evt.GraphID = graphID
		if evt.Type == hub.EventNodeMoved {
			h.persistMove(ctx, graphID, viewer, evt.Payload)
		}
		h.hub.Broadcast(graphID, evt)
	case evt.Type == "":
		_ = h.hub.SendDirect(viewer, hub.ErrorEvent("type is required"))
	default:
		_ = h.hub.SendDirect(viewer, hub.ErrorEvent("unsupported type: "+evt.Type))
	}
}

func (h *WSHandler) persistMove(ctx context.Context, graphID string, viewer *wsConn, payload json.RawMessage) {
	var move hub.NodeMovedPayload
	if err := json.Unmarshal(payload, &move); err != nil || move.NodeID == "" {
		_ = h.hub.SendDirect(viewer, hub.ErrorEvent("node_moved requires a node_id and coordinates"))
		return
	}
	if err := h.store.MoveNode(ctx, graphID, move.NodeID, move.X, move.Y, move.Z); err != nil {
		// Replication still proceeds; the authoritative position catches up
		// on the next full read.
		log.Printf("graph ws persist move %s/%s: %v", graphID, move.NodeID, err)
	}
}
