// Package graph holds the canonical graph model shared by the store, the
// sandbox translator, and the websocket hub.
package graph

import "time"

// Default visual attributes applied when a node or edge omits them.
const (
	DefaultNodeColor = "#3498db"
	DefaultEdgeColor = "#95a5a6"
	DefaultNodeSize  = 1.0
	DefaultEdgeWeight = 1.0
)

// Graph is a named collection of nodes and edges. Nodes keep their
// insertion order; every edge endpoint references a node of the same graph.
type Graph struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Node is a single labeled point in 3D space.
type Node struct {
	ID    string  `json:"id,omitempty"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Color string  `json:"color,omitempty"`
	Size  float64 `json:"size,omitempty"`
	Extra map[string]any `json:"extra_data,omitempty"`
}

// Edge connects two nodes of the same graph by their durable IDs.
type Edge struct {
	ID       string  `json:"id,omitempty"`
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Weight   float64 `json:"weight,omitempty"`
	Directed bool    `json:"directed,omitempty"`
	Color    string  `json:"color,omitempty"`
	Extra    map[string]any `json:"extra_data,omitempty"`
}

// Fragment is a request-local graph produced by a generation run. Edge
// endpoints are 0-based indices into Nodes; durable IDs are assigned by the
// store when the fragment is committed, in declaration order.
type Fragment struct {
	Nodes []Node         `json:"nodes"`
	Edges []FragmentEdge `json:"edges"`
}

// FragmentEdge references its endpoints by node list index rather than ID.
type FragmentEdge struct {
	Source   int     `json:"source_id"`
	Target   int     `json:"target_id"`
	Weight   float64 `json:"weight"`
	Directed bool    `json:"directed"`
	Color    string  `json:"color,omitempty"`
	Extra    map[string]any `json:"extra_data,omitempty"`
}

// ApplyNodeDefaults fills zero-valued visual attributes in place.
func ApplyNodeDefaults(n *Node) {
	if n.Color == "" {
		n.Color = DefaultNodeColor
	}
	if n.Size == 0 {
		n.Size = DefaultNodeSize
	}
}

// ApplyEdgeDefaults fills zero-valued visual attributes in place.
func ApplyEdgeDefaults(e *FragmentEdge) {
	if e.Color == "" {
		e.Color = DefaultEdgeColor
	}
	if e.Weight == 0 {
		e.Weight = DefaultEdgeWeight
	}
}
