package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"graphscape/internal/graph"
)

// Postgres persists graphs through database/sql on the pgx driver. Commit
// and cascade semantics come from transactions and ON DELETE CASCADE
// foreign keys; read snapshots are served from an LRU cache that every
// write invalidates.
type Postgres struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	snapshots *lru.Cache[string, *graph.Graph]
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("ping", err)
	}
	cache, err := lru.New[string, *graph.Graph](256)
	if err != nil {
		_ = db.Close()
		return nil, storageErr("cache", err)
	}
	return &Postgres{db: db, snapshots: cache}, nil
}

func (p *Postgres) ensureSchema() error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.Exec(`
CREATE TABLE IF NOT EXISTS graphs (
  graph_id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT 'Untitled Graph',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS nodes (
  node_id TEXT PRIMARY KEY,
  graph_id TEXT NOT NULL REFERENCES graphs (graph_id) ON DELETE CASCADE,
  label TEXT NOT NULL,
  x DOUBLE PRECISION NOT NULL DEFAULT 0,
  y DOUBLE PRECISION NOT NULL DEFAULT 0,
  z DOUBLE PRECISION NOT NULL DEFAULT 0,
  color TEXT NOT NULL DEFAULT '#3498db',
  size DOUBLE PRECISION NOT NULL DEFAULT 1.0,
  extra_data JSONB,
  ord INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_graph_id ON nodes (graph_id);

CREATE TABLE IF NOT EXISTS edges (
  edge_id TEXT PRIMARY KEY,
  graph_id TEXT NOT NULL REFERENCES graphs (graph_id) ON DELETE CASCADE,
  source_id TEXT NOT NULL REFERENCES nodes (node_id) ON DELETE CASCADE,
  target_id TEXT NOT NULL REFERENCES nodes (node_id) ON DELETE CASCADE,
  weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
  directed BOOLEAN NOT NULL DEFAULT FALSE,
  color TEXT NOT NULL DEFAULT '#95a5a6',
  extra_data JSONB,
  ord INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_edges_graph_id ON edges (graph_id);
`)
	})
	return p.schemaErr
}

func (p *Postgres) CreateGraph(ctx context.Context, name string) (*graph.Graph, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	if name == "" {
		name = "Untitled Graph"
	}
	g := graph.Graph{ID: newID("g"), Name: name, Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	row := p.db.QueryRowContext(ctx, `
INSERT INTO graphs (graph_id, name) VALUES ($1, $2)
RETURNING created_at, updated_at`, g.ID, g.Name)
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, storageErr("create graph", err)
	}
	return &g, nil
}

func (p *Postgres) ReadGraph(ctx context.Context, id string) (*graph.Graph, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	if cached, ok := p.snapshots.Get(id); ok {
		return copyGraph(cached), nil
	}

	// A read-only transaction gives a consistent snapshot across the three
	// tables, so a concurrent commit or cascade is seen whole or not at all.
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, storageErr("read graph", err)
	}
	defer func() { _ = tx.Rollback() }()

	g := graph.Graph{ID: id, Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	row := tx.QueryRowContext(ctx, `SELECT name, created_at, updated_at FROM graphs WHERE graph_id = $1`, id)
	if err := row.Scan(&g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("read graph", err)
	}

	rows, err := tx.QueryContext(ctx, `
SELECT node_id, label, x, y, z, color, size, extra_data
FROM nodes WHERE graph_id = $1 ORDER BY ord, node_id`, id)
	if err != nil {
		return nil, storageErr("read nodes", err)
	}
	for rows.Next() {
		var n graph.Node
		var extra []byte
		if err := rows.Scan(&n.ID, &n.Label, &n.X, &n.Y, &n.Z, &n.Color, &n.Size, &extra); err != nil {
			rows.Close()
			return nil, storageErr("scan node", err)
		}
		n.Extra = decodeExtra(extra)
		g.Nodes = append(g.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("read nodes", err)
	}

	rows, err = tx.QueryContext(ctx, `
SELECT edge_id, source_id, target_id, weight, directed, color, extra_data
FROM edges WHERE graph_id = $1 ORDER BY ord, edge_id`, id)
	if err != nil {
		return nil, storageErr("read edges", err)
	}
	for rows.Next() {
		var e graph.Edge
		var extra []byte
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Weight, &e.Directed, &e.Color, &extra); err != nil {
			rows.Close()
			return nil, storageErr("scan edge", err)
		}
		e.Extra = decodeExtra(extra)
		g.Edges = append(g.Edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("read edges", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("read graph", err)
	}
	p.snapshots.Add(id, copyGraph(&g))
	return &g, nil
}

func (p *Postgres) ListGraphs(ctx context.Context) ([]graph.Graph, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	rows, err := p.db.QueryContext(ctx, `
SELECT graph_id, name, created_at, updated_at FROM graphs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, storageErr("list graphs", err)
	}
	defer rows.Close()
	out := make([]graph.Graph, 0, 32)
	for rows.Next() {
		var g graph.Graph
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, storageErr("scan graph", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list graphs", err)
	}
	return out, nil
}

func (p *Postgres) RenameGraph(ctx context.Context, id, name string) error {
	if err := p.ensureSchema(); err != nil {
		return storageErr("schema", err)
	}
	res, err := p.db.ExecContext(ctx, `
UPDATE graphs SET name = $2, updated_at = NOW() WHERE graph_id = $1`, id, name)
	if err != nil {
		return storageErr("rename graph", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	p.snapshots.Remove(id)
	return nil
}

func (p *Postgres) DeleteGraph(ctx context.Context, id string) error {
	if err := p.ensureSchema(); err != nil {
		return storageErr("schema", err)
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM graphs WHERE graph_id = $1`, id)
	if err != nil {
		return storageErr("delete graph", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	p.snapshots.Remove(id)
	return nil
}

func (p *Postgres) CommitGraph(ctx context.Context, id string, frag *graph.Fragment) (*graph.Graph, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("commit graph", err)
	}
	defer func() { _ = tx.Rollback() }()

	g := graph.Graph{ID: id}
	row := tx.QueryRowContext(ctx, `
SELECT name, created_at FROM graphs WHERE graph_id = $1 FOR UPDATE`, id)
	if err := row.Scan(&g.Name, &g.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("commit graph", err)
	}

	// Full replace: dropping the nodes cascades to the old edges.
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE graph_id = $1`, id); err != nil {
		return nil, storageErr("clear nodes", err)
	}

	g.Nodes = make([]graph.Node, len(frag.Nodes))
	for i, n := range frag.Nodes {
		n.ID = newID("n")
		extra, err := encodeExtra(n.Extra)
		if err != nil {
			return nil, storageErr("encode node", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO nodes (node_id, graph_id, label, x, y, z, color, size, extra_data, ord)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			n.ID, id, n.Label, n.X, n.Y, n.Z, n.Color, n.Size, extra, i); err != nil {
			return nil, storageErr("insert node", err)
		}
		g.Nodes[i] = n
	}

	g.Edges = make([]graph.Edge, len(frag.Edges))
	for i, fe := range frag.Edges {
		e := graph.Edge{
			ID:       newID("e"),
			SourceID: g.Nodes[fe.Source].ID,
			TargetID: g.Nodes[fe.Target].ID,
			Weight:   fe.Weight,
			Directed: fe.Directed,
			Color:    fe.Color,
			Extra:    fe.Extra,
		}
		extra, err := encodeExtra(e.Extra)
		if err != nil {
			return nil, storageErr("encode edge", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO edges (edge_id, graph_id, source_id, target_id, weight, directed, color, extra_data, ord)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			e.ID, id, e.SourceID, e.TargetID, e.Weight, e.Directed, e.Color, extra, i); err != nil {
			return nil, storageErr("insert edge", err)
		}
		g.Edges[i] = e
	}

	row = tx.QueryRowContext(ctx, `
UPDATE graphs SET updated_at = NOW() WHERE graph_id = $1 RETURNING updated_at`, id)
	if err := row.Scan(&g.UpdatedAt); err != nil {
		return nil, storageErr("commit graph", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit graph", err)
	}
	p.snapshots.Remove(id)
	return &g, nil
}

func (p *Postgres) UpsertNode(ctx context.Context, graphID string, n graph.Node) (*graph.Node, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	graph.ApplyNodeDefaults(&n)
	if n.ID == "" {
		n.ID = newID("n")
	}
	extra, err := encodeExtra(n.Extra)
	if err != nil {
		return nil, storageErr("encode node", err)
	}
	res, err := p.db.ExecContext(ctx, `
INSERT INTO nodes (node_id, graph_id, label, x, y, z, color, size, extra_data, ord)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,
  COALESCE((SELECT MAX(ord)+1 FROM nodes WHERE graph_id = $2), 0))
ON CONFLICT (node_id)
DO UPDATE SET label=EXCLUDED.label, x=EXCLUDED.x, y=EXCLUDED.y, z=EXCLUDED.z,
  color=EXCLUDED.color, size=EXCLUDED.size, extra_data=EXCLUDED.extra_data
WHERE nodes.graph_id = $2`,
		n.ID, graphID, n.Label, n.X, n.Y, n.Z, n.Color, n.Size, extra)
	if err != nil {
		return nil, storageErr("upsert node", err)
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return nil, fmt.Errorf("node %s: %w", n.ID, ErrNotFound)
	}
	p.touch(ctx, graphID)
	return &n, nil
}

func (p *Postgres) UpsertEdge(ctx context.Context, graphID string, e graph.Edge) (*graph.Edge, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, storageErr("schema", err)
	}
	if e.ID == "" {
		e.ID = newID("e")
	}
	if e.Weight == 0 {
		e.Weight = graph.DefaultEdgeWeight
	}
	if e.Color == "" {
		e.Color = graph.DefaultEdgeColor
	}
	extra, err := encodeExtra(e.Extra)
	if err != nil {
		return nil, storageErr("encode edge", err)
	}
	res, err := p.db.ExecContext(ctx, `
INSERT INTO edges (edge_id, graph_id, source_id, target_id, weight, directed, color, extra_data, ord)
SELECT $1, $2, $3, $4, $5, $6, $7, $8,
  COALESCE((SELECT MAX(ord)+1 FROM edges WHERE graph_id = $2), 0)
WHERE EXISTS (SELECT 1 FROM nodes WHERE node_id = $3 AND graph_id = $2)
  AND EXISTS (SELECT 1 FROM nodes WHERE node_id = $4 AND graph_id = $2)
ON CONFLICT (edge_id)
DO UPDATE SET source_id=EXCLUDED.source_id, target_id=EXCLUDED.target_id,
  weight=EXCLUDED.weight, directed=EXCLUDED.directed, color=EXCLUDED.color,
  extra_data=EXCLUDED.extra_data
WHERE edges.graph_id = $2`,
		e.ID, graphID, e.SourceID, e.TargetID, e.Weight, e.Directed, e.Color, extra)
	if err != nil {
		return nil, storageErr("upsert edge", err)
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return nil, fmt.Errorf("edge endpoints %s/%s: %w", e.SourceID, e.TargetID, ErrNotFound)
	}
	p.touch(ctx, graphID)
	return &e, nil
}

func (p *Postgres) MoveNode(ctx context.Context, graphID, nodeID string, x, y, z float64) error {
	if err := p.ensureSchema(); err != nil {
		return storageErr("schema", err)
	}
	res, err := p.db.ExecContext(ctx, `
UPDATE nodes SET x = $3, y = $4, z = $5 WHERE node_id = $1 AND graph_id = $2`,
		nodeID, graphID, x, y, z)
	if err != nil {
		return storageErr("move node", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	p.touch(ctx, graphID)
	return nil
}

func (p *Postgres) DeleteNode(ctx context.Context, graphID, nodeID string) error {
	if err := p.ensureSchema(); err != nil {
		return storageErr("schema", err)
	}
	// Single statement; the edge cascade rides the same transaction.
	res, err := p.db.ExecContext(ctx, `
DELETE FROM nodes WHERE node_id = $1 AND graph_id = $2`, nodeID, graphID)
	if err != nil {
		return storageErr("delete node", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	p.touch(ctx, graphID)
	return nil
}

func (p *Postgres) DeleteEdge(ctx context.Context, graphID, edgeID string) error {
	if err := p.ensureSchema(); err != nil {
		return storageErr("schema", err)
	}
	res, err := p.db.ExecContext(ctx, `
DELETE FROM edges WHERE edge_id = $1 AND graph_id = $2`, edgeID, graphID)
	if err != nil {
		return storageErr("delete edge", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("edge %s: %w", edgeID, ErrNotFound)
	}
	p.touch(ctx, graphID)
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) touch(ctx context.Context, graphID string) {
	_, _ = p.db.ExecContext(ctx, `UPDATE graphs SET updated_at = NOW() WHERE graph_id = $1`, graphID)
	p.snapshots.Remove(graphID)
}

func encodeExtra(extra map[string]any) ([]byte, error) {
	if extra == nil {
		return nil, nil
	}
	return json.Marshal(extra)
}

func decodeExtra(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
