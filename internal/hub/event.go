package hub

import "encoding/json"

// Event types carried between viewers and the hub. Mutation types fan out to
// every viewer of the graph; ping/pong and error go to a single connection.
const (
	EventNodeMoved    = "node_moved"
	EventNodeUpdated  = "node_updated"
	EventEdgeUpdated  = "edge_updated"
	EventGraphUpdated = "graph_updated"
	EventPing         = "ping"
	EventPong         = "pong"
	EventError        = "error"
)

// Event is the wire shape of a live-editing message: a type tag, the graph
// it belongs to, and the minimal delta needed to apply the change.
type Event struct {
	Type    string          `json:"type"`
	GraphID string          `json:"graph_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NodeMovedPayload is the delta carried by a node_moved event.
type NodeMovedPayload struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

// ErrorPayload is the delta carried by an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// IsMutation reports whether a message type is one the hub fans out.
func IsMutation(eventType string) bool {
	switch eventType {
	case EventNodeMoved, EventNodeUpdated, EventEdgeUpdated, EventGraphUpdated:
		return true
	}
	return false
}

// ErrorEvent builds an error event with the given message.
func ErrorEvent(message string) Event {
	payload, _ := json.Marshal(ErrorPayload{Message: message})
	return Event{Type: EventError, Payload: payload}
}
