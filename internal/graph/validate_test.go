package graph

import (
	"errors"
	"math"
	"testing"
)

func validFragment() *Fragment {
	return &Fragment{
		Nodes: []Node{
			{Label: "a", X: 0, Y: 0, Z: 0, Size: 1, Color: DefaultNodeColor},
			{Label: "b", X: 1, Y: 1, Z: 1, Size: 1, Color: DefaultNodeColor},
		},
		Edges: []FragmentEdge{
			{Source: 0, Target: 1, Weight: 1, Color: DefaultEdgeColor},
		},
	}
}

func TestValidateFragmentAccepts(t *testing.T) {
	if err := ValidateFragment(validFragment()); err != nil {
		t.Fatalf("valid fragment rejected: %v", err)
	}
}

func TestValidateFragmentAllowsSelfLoopsAndParallelEdges(t *testing.T) {
	f := validFragment()
	f.Edges = append(f.Edges,
		FragmentEdge{Source: 0, Target: 0, Weight: 1},
		FragmentEdge{Source: 0, Target: 1, Weight: 2},
	)
	if err := ValidateFragment(f); err != nil {
		t.Fatalf("self-loop or parallel edge rejected: %v", err)
	}
}

func TestValidateFragmentRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Fragment)
		entity string
		field  string
	}{
		{"empty label", func(f *Fragment) { f.Nodes[0].Label = "" }, "node", "label"},
		{"nan coordinate", func(f *Fragment) { f.Nodes[1].Y = math.NaN() }, "node", "y"},
		{"infinite coordinate", func(f *Fragment) { f.Nodes[0].Z = math.Inf(1) }, "node", "z"},
		{"zero size", func(f *Fragment) { f.Nodes[0].Size = 0 }, "node", "size"},
		{"negative size", func(f *Fragment) { f.Nodes[0].Size = -2 }, "node", "size"},
		{"source out of range", func(f *Fragment) { f.Edges[0].Source = 2 }, "edge", "source_id"},
		{"negative target", func(f *Fragment) { f.Edges[0].Target = -1 }, "edge", "target_id"},
		{"nan weight", func(f *Fragment) { f.Edges[0].Weight = math.NaN() }, "edge", "weight"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFragment()
			tc.mutate(f)
			err := ValidateFragment(f)
			if err == nil {
				t.Fatalf("expected violation")
			}
			var v *ViolationError
			if !errors.As(err, &v) {
				t.Fatalf("expected ViolationError, got %T", err)
			}
			if v.Entity != tc.entity || v.Field != tc.field {
				t.Fatalf("got %s/%s, want %s/%s", v.Entity, v.Field, tc.entity, tc.field)
			}
		})
	}
}

func TestValidateFragmentEdgeIndicesAgainstEmptyNodes(t *testing.T) {
	f := &Fragment{Edges: []FragmentEdge{{Source: 0, Target: 0, Weight: 1}}}
	if err := ValidateFragment(f); err == nil {
		t.Fatalf("edge referencing empty node list must be rejected")
	}
}

func TestApplyDefaults(t *testing.T) {
	n := Node{Label: "a"}
	ApplyNodeDefaults(&n)
	if n.Color != DefaultNodeColor || n.Size != DefaultNodeSize {
		t.Fatalf("node defaults not applied: %+v", n)
	}

	kept := Node{Label: "b", Color: "#ffffff", Size: 3}
	ApplyNodeDefaults(&kept)
	if kept.Color != "#ffffff" || kept.Size != 3 {
		t.Fatalf("explicit node attributes overwritten: %+v", kept)
	}

	e := FragmentEdge{}
	ApplyEdgeDefaults(&e)
	if e.Color != DefaultEdgeColor || e.Weight != DefaultEdgeWeight {
		t.Fatalf("edge defaults not applied: %+v", e)
	}
}
