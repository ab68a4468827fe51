package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"graphscape/internal/graph"
)

// Memory is the non-DB fallback backend. A single lock guards the whole
// map, which trivially gives every operation the same atomicity the
// postgres backend gets from transactions.
type Memory struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

func NewMemory() *Memory {
	return &Memory{graphs: make(map[string]*graph.Graph)}
}

func (m *Memory) CreateGraph(_ context.Context, name string) (*graph.Graph, error) {
	if name == "" {
		name = "Untitled Graph"
	}
	now := time.Now().UTC()
	g := &graph.Graph{
		ID:        newID("g"),
		Name:      name,
		Nodes:     []graph.Node{},
		Edges:     []graph.Edge{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.graphs[g.ID] = g
	m.mu.Unlock()
	return copyGraph(g), nil
}

func (m *Memory) ReadGraph(_ context.Context, id string) (*graph.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	return copyGraph(g), nil
}

func (m *Memory) ListGraphs(_ context.Context) ([]graph.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]graph.Graph, 0, len(m.graphs))
	for _, g := range m.graphs {
		meta := *g
		meta.Nodes = nil
		meta.Edges = nil
		out = append(out, meta)
	}
	return out, nil
}

func (m *Memory) RenameGraph(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[id]
	if !ok {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	g.Name = name
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteGraph(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[id]; !ok {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	delete(m.graphs, id)
	return nil
}

func (m *Memory) CommitGraph(_ context.Context, id string, frag *graph.Fragment) (*graph.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}

	nodes := make([]graph.Node, len(frag.Nodes))
	for i, n := range frag.Nodes {
		n.ID = newID("n")
		nodes[i] = n
	}
	edges := make([]graph.Edge, len(frag.Edges))
	for i, fe := range frag.Edges {
		edges[i] = graph.Edge{
			ID:       newID("e"),
			SourceID: nodes[fe.Source].ID,
			TargetID: nodes[fe.Target].ID,
			Weight:   fe.Weight,
			Directed: fe.Directed,
			Color:    fe.Color,
			Extra:    fe.Extra,
		}
	}

	g.Nodes = nodes
	g.Edges = edges
	g.UpdatedAt = time.Now().UTC()
	return copyGraph(g), nil
}

func (m *Memory) UpsertNode(_ context.Context, graphID string, n graph.Node) (*graph.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", graphID, ErrNotFound)
	}
	graph.ApplyNodeDefaults(&n)
	if n.ID == "" {
		n.ID = newID("n")
		g.Nodes = append(g.Nodes, n)
	} else {
		found := false
		for i := range g.Nodes {
			if g.Nodes[i].ID == n.ID {
				g.Nodes[i] = n
				found = true
				break
			}
		}
		if !found {
			g.Nodes = append(g.Nodes, n)
		}
	}
	g.UpdatedAt = time.Now().UTC()
	return &n, nil
}

func (m *Memory) UpsertEdge(_ context.Context, graphID string, e graph.Edge) (*graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", graphID, ErrNotFound)
	}
	if !nodeExists(g, e.SourceID) {
		return nil, fmt.Errorf("source node %s: %w", e.SourceID, ErrNotFound)
	}
	if !nodeExists(g, e.TargetID) {
		return nil, fmt.Errorf("target node %s: %w", e.TargetID, ErrNotFound)
	}
	if e.Weight == 0 {
		e.Weight = graph.DefaultEdgeWeight
	}
	if e.Color == "" {
		e.Color = graph.DefaultEdgeColor
	}
	if e.ID == "" {
		e.ID = newID("e")
		g.Edges = append(g.Edges, e)
	} else {
		found := false
		for i := range g.Edges {
			if g.Edges[i].ID == e.ID {
				g.Edges[i] = e
				found = true
				break
			}
		}
		if !found {
			g.Edges = append(g.Edges, e)
		}
	}
	g.UpdatedAt = time.Now().UTC()
	return &e, nil
}

func (m *Memory) MoveNode(_ context.Context, graphID, nodeID string, x, y, z float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return fmt.Errorf("graph %s: %w", graphID, ErrNotFound)
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == nodeID {
			g.Nodes[i].X, g.Nodes[i].Y, g.Nodes[i].Z = x, y, z
			g.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
}

func (m *Memory) DeleteNode(_ context.Context, graphID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return fmt.Errorf("graph %s: %w", graphID, ErrNotFound)
	}
	idx := -1
	for i := range g.Nodes {
		if g.Nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	// Cascade: drop every edge touching the node in the same step.
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteEdge(_ context.Context, graphID, edgeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return fmt.Errorf("graph %s: %w", graphID, ErrNotFound)
	}
	for i := range g.Edges {
		if g.Edges[i].ID == edgeID {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			g.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("edge %s: %w", edgeID, ErrNotFound)
}

func (m *Memory) Close() error { return nil }

func nodeExists(g *graph.Graph, id string) bool {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return true
		}
	}
	return false
}

func copyGraph(g *graph.Graph) *graph.Graph {
	out := *g
	out.Nodes = append([]graph.Node(nil), g.Nodes...)
	out.Edges = append([]graph.Edge(nil), g.Edges...)
	return &out
}
