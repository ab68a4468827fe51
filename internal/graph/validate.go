package graph

import (
	"fmt"
	"math"
)

// ViolationError reports the first structural problem found in a fragment.
// Field names the offending attribute; Index is the position of the node or
// edge inside its list, or -1 when the problem is not positional.
type ViolationError struct {
	Entity string // "node", "edge" or "fragment"
	Index  int
	Field  string
	Msg    string
}

func (e *ViolationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", e.Entity, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s[%d]: %s: %s", e.Entity, e.Index, e.Field, e.Msg)
}

// ValidateFragment checks a generation result for structural validity:
// non-empty labels, finite coordinates, positive sizes, and edge endpoint
// indices inside [0, len(nodes)). Self-loops and parallel edges are allowed.
// Defaults are NOT applied here; callers substitute them before validation.
func ValidateFragment(f *Fragment) error {
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.Label == "" {
			return &ViolationError{Entity: "node", Index: i, Field: "label", Msg: "must not be empty"}
		}
		for _, c := range [...]struct {
			name string
			v    float64
		}{{"x", n.X}, {"y", n.Y}, {"z", n.Z}} {
			if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
				return &ViolationError{Entity: "node", Index: i, Field: c.name, Msg: "must be a finite number"}
			}
		}
		if n.Size <= 0 || math.IsNaN(n.Size) || math.IsInf(n.Size, 0) {
			return &ViolationError{Entity: "node", Index: i, Field: "size", Msg: "must be a positive finite number"}
		}
	}
	for i := range f.Edges {
		e := &f.Edges[i]
		if e.Source < 0 || e.Source >= len(f.Nodes) {
			return &ViolationError{Entity: "edge", Index: i, Field: "source_id",
				Msg: fmt.Sprintf("index %d out of range [0,%d)", e.Source, len(f.Nodes))}
		}
		if e.Target < 0 || e.Target >= len(f.Nodes) {
			return &ViolationError{Entity: "edge", Index: i, Field: "target_id",
				Msg: fmt.Sprintf("index %d out of range [0,%d)", e.Target, len(f.Nodes))}
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return &ViolationError{Entity: "edge", Index: i, Field: "weight", Msg: "must be a finite number"}
		}
	}
	return nil
}
