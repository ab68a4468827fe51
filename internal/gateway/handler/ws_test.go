package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"graphscape/internal/graph"
	"graphscape/internal/hub"
	"graphscape/internal/store"
)

func newWSServer(t *testing.T) (*httptest.Server, *store.Memory, *hub.Hub) {
	t.Helper()
	st := store.NewMemory()
	liveHub := hub.New()
	h := NewWSHandler(liveHub, st)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/graphs/{id}", h.HandleGraphWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st, liveHub
}

func dialGraph(t *testing.T, srv *httptest.Server, graphID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/graphs/" + graphID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestWSPingPong(t *testing.T) {
	srv, _, _ := newWSServer(t)
	conn := dialGraph(t, srv, "g1")

	require.NoError(t, conn.WriteJSON(hub.Event{Type: hub.EventPing}))

	var reply hub.Event
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, hub.EventPong, reply.Type)
}

func TestWSNodeMovedReplicatesAndPersists(t *testing.T) {
	srv, st, _ := newWSServer(t)
	g, err := st.CreateGraph(context.Background(), "live")
	require.NoError(t, err)
	n, err := st.UpsertNode(context.Background(), g.ID, graph.Node{Label: "a"})
	require.NoError(t, err)

	mover := dialGraph(t, srv, g.ID)
	watcher := dialGraph(t, srv, g.ID)

	// Second join is asynchronous from the client's point of view; ping
	// the watcher so we know its registration finished.
	require.NoError(t, watcher.WriteJSON(hub.Event{Type: hub.EventPing}))
	var pong hub.Event
	require.NoError(t, watcher.ReadJSON(&pong))

	payload, err := json.Marshal(hub.NodeMovedPayload{NodeID: n.ID, X: 7, Y: 8, Z: 9})
	require.NoError(t, err)
	require.NoError(t, mover.WriteJSON(hub.Event{Type: hub.EventNodeMoved, Payload: payload}))

	for _, conn := range []*websocket.Conn{mover, watcher} {
		var evt hub.Event
		require.NoError(t, conn.ReadJSON(&evt))
		require.Equal(t, hub.EventNodeMoved, evt.Type)
		require.Equal(t, g.ID, evt.GraphID)
	}

	var moved graph.Node
	require.Eventually(t, func() bool {
		got, err := st.ReadGraph(context.Background(), g.ID)
		if err != nil {
			return false
		}
		moved = got.Nodes[0]
		return moved.X == 7
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 8.0, moved.Y)
	require.Equal(t, 9.0, moved.Z)
}

func TestWSIsolationAcrossGraphs(t *testing.T) {
	srv, _, _ := newWSServer(t)
	a := dialGraph(t, srv, "g1")
	b := dialGraph(t, srv, "g2")

	require.NoError(t, a.WriteJSON(hub.Event{Type: hub.EventGraphUpdated}))

	// The originator sees its own broadcast; the viewer of the other
	// graph must not.
	var evt hub.Event
	require.NoError(t, a.ReadJSON(&evt))
	require.Equal(t, hub.EventGraphUpdated, evt.Type)

	require.NoError(t, b.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	require.Error(t, b.ReadJSON(&evt))
}

func TestWSUnknownTypeGetsError(t *testing.T) {
	srv, _, _ := newWSServer(t)
	conn := dialGraph(t, srv, "g1")

	require.NoError(t, conn.WriteJSON(hub.Event{Type: "teleport"}))

	var reply hub.Event
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, hub.EventError, reply.Type)

	var p hub.ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &p))
	require.Contains(t, p.Message, "teleport")
}
