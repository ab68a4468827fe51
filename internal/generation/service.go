// Package generation orchestrates the script-to-graph pipeline: capability
// filtering, sandboxed execution, result translation, commit, and the
// post-commit broadcast to live viewers.
package generation

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"graphscape/internal/graph"
	"graphscape/internal/hub"
	"graphscape/internal/sandbox"
	"graphscape/internal/sandbox/runner"
	"graphscape/internal/store"
)

// ScriptExecutor runs an accepted job and returns the raw result JSON.
// Satisfied by *sandbox.Executor; tests substitute fakes.
type ScriptExecutor interface {
	Execute(ctx context.Context, job runner.Job) (json.RawMessage, error)
}

// Broadcaster fans a mutation event out to the viewers of a graph.
type Broadcaster interface {
	Broadcast(graphID string, evt hub.Event)
}

// Archiver receives a snapshot of every committed graph. Optional.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, g *graph.Graph) error
}

// Request is one generation run: script text plus a name hint for the
// resulting graph. The module allow-list is service configuration, never
// part of the request.
type Request struct {
	Script   string
	NameHint string
	Timeout  time.Duration // 0 means the executor's default
}

// Result is a validated graph fragment awaiting commit. Until ApplyToGraph
// runs, edge endpoints are request-local node indices.
type Result struct {
	Fragment *graph.Fragment
	NameHint string
}

// Service wires the sandbox pipeline to the store and the hub.
type Service struct {
	filter   *sandbox.Filter
	executor ScriptExecutor
	store    store.Store
	hub      Broadcaster
	archiver Archiver
}

func NewService(filter *sandbox.Filter, executor ScriptExecutor, st store.Store, h Broadcaster) *Service {
	return &Service{filter: filter, executor: executor, store: st, hub: h}
}

// SetArchiver attaches an optional post-commit snapshot archiver.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

// AllowedModules exposes the fixed allow-list, e.g. for the template
// endpoint.
func (s *Service) AllowedModules() []string { return s.filter.AllowedModules() }

// Generate validates and executes the script and translates its output into
// a graph fragment. A script the filter rejects never reaches the executor,
// so no process is spawned for it. Execution failures are returned as-is;
// resubmission is the caller's decision.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := s.filter.Check(req.Script); err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	raw, err := s.executor.Execute(ctx, runner.Job{
		Script:         req.Script,
		AllowedModules: s.filter.AllowedModules(),
	})
	if err != nil {
		return nil, err
	}

	frag, err := sandbox.Translate(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Fragment: frag, NameHint: req.NameHint}, nil
}

// ApplyToGraph commits a generation result to an existing graph and then
// broadcasts graph_updated to its viewers. Commit and broadcast are two
// independent steps with no shared transaction: a broadcast failure never
// rolls back a successful commit, and storage failures surface unchanged.
func (s *Service) ApplyToGraph(ctx context.Context, graphID string, res *Result) (*graph.Graph, error) {
	committed, err := s.store.CommitGraph(ctx, graphID, res.Fragment)
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveSnapshot(ctx, committed); err != nil {
			log.Printf("generation: snapshot archive for %s failed: %v", graphID, err)
		}
	}

	payload, err := json.Marshal(committed)
	if err != nil {
		log.Printf("generation: encode broadcast for %s failed: %v", graphID, err)
		return committed, nil
	}
	s.hub.Broadcast(graphID, hub.Event{
		Type:    hub.EventGraphUpdated,
		GraphID: graphID,
		Payload: payload,
	})
	return committed, nil
}

// GenerateInto is the common request path: run the script, create a fresh
// graph named after the hint, and commit the result into it.
func (s *Service) GenerateInto(ctx context.Context, req Request) (*graph.Graph, error) {
	res, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	name := req.NameHint
	if name == "" {
		name = "Generated Graph"
	}
	g, err := s.store.CreateGraph(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.ApplyToGraph(ctx, g.ID, res)
}
