// Package store is the narrow persistence gateway the core writes graph
// state through. Backends must make CommitGraph and DeleteNode atomic: a
// concurrent ReadGraph observes either the old or the new state, never a
// partial write. Infrastructure failures wrap ErrStorage and are surfaced
// to callers unchanged; the core never retries them.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"graphscape/internal/graph"
)

var (
	// ErrNotFound reports a missing graph, node, or edge.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps backend infrastructure failures.
	ErrStorage = errors.New("storage failure")
)

// Store is the contract between the core and durable graph state.
type Store interface {
	CreateGraph(ctx context.Context, name string) (*graph.Graph, error)
	ReadGraph(ctx context.Context, id string) (*graph.Graph, error)
	ListGraphs(ctx context.Context) ([]graph.Graph, error)
	RenameGraph(ctx context.Context, id, name string) error
	DeleteGraph(ctx context.Context, id string) error

	// CommitGraph atomically replaces the graph's full node and edge sets
	// with the fragment's, assigning durable identities and resolving the
	// fragment's index references in declaration order.
	CommitGraph(ctx context.Context, id string, frag *graph.Fragment) (*graph.Graph, error)

	UpsertNode(ctx context.Context, graphID string, n graph.Node) (*graph.Node, error)
	UpsertEdge(ctx context.Context, graphID string, e graph.Edge) (*graph.Edge, error)

	// MoveNode persists a position-only change, the delta carried by a
	// node_moved event.
	MoveNode(ctx context.Context, graphID, nodeID string, x, y, z float64) error

	// DeleteNode removes the node and every edge referencing it as one
	// atomic step.
	DeleteNode(ctx context.Context, graphID, nodeID string) error
	DeleteEdge(ctx context.Context, graphID, edgeID string) error

	Close() error
}

// NewFromEnv picks the postgres backend when GRAPH_STORE_PG_DSN is set and
// reachable, falling back to the in-memory backend otherwise.
func NewFromEnv() Store {
	dsn := strings.TrimSpace(os.Getenv("GRAPH_STORE_PG_DSN"))
	if dsn == "" {
		return NewMemory()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		log.Printf("store: postgres unavailable, using in-memory backend: %v", err)
		return NewMemory()
	}
	return s
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func newID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "-" + hex.EncodeToString(b[:])
}
