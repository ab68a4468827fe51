package sandbox

import (
	"encoding/json"
	"fmt"

	"graphscape/internal/graph"
)

// rawResult is the only shape a script's output binding may take: exactly a
// nodes list and an edges list at the top level.
type rawResult struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

type rawNode struct {
	Label string         `json:"label"`
	X     *float64       `json:"x"`
	Y     *float64       `json:"y"`
	Z     *float64       `json:"z"`
	Color string         `json:"color"`
	Size  *float64       `json:"size"`
	Extra map[string]any `json:"extra_data"`
}

type rawEdge struct {
	Source   *int           `json:"source_id"`
	Target   *int           `json:"target_id"`
	Weight   *float64       `json:"weight"`
	Directed bool           `json:"directed"`
	Color    string         `json:"color"`
	Extra    map[string]any `json:"extra_data"`
}

// Translate converts the raw output of a generation run into a validated
// graph fragment. Nodes may be objects or positional [x, y, z] lists; edges
// may be objects or positional [source, target, weight?] lists, mirroring
// the shapes the generation template documents. Every failure is a
// schema-violation error naming the offending field and index.
func Translate(raw json.RawMessage) (*graph.Fragment, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, schemaErr("result", "must be an object with nodes and edges")
	}
	for key := range top {
		if key != "nodes" && key != "edges" {
			return nil, schemaErr("result", fmt.Sprintf("unexpected top-level field %q", key))
		}
	}
	var res rawResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, schemaErr("result", "nodes and edges must be lists")
	}
	if _, ok := top["nodes"]; !ok {
		return nil, schemaErr("result", "missing nodes list")
	}
	if _, ok := top["edges"]; !ok {
		return nil, schemaErr("result", "missing edges list")
	}

	frag := &graph.Fragment{
		Nodes: make([]graph.Node, 0, len(res.Nodes)),
		Edges: make([]graph.FragmentEdge, 0, len(res.Edges)),
	}
	for i, rawN := range res.Nodes {
		node, err := translateNode(rawN, i)
		if err != nil {
			return nil, err
		}
		frag.Nodes = append(frag.Nodes, node)
	}
	for i, rawE := range res.Edges {
		edge, err := translateEdge(rawE, i)
		if err != nil {
			return nil, err
		}
		frag.Edges = append(frag.Edges, edge)
	}

	if err := graph.ValidateFragment(frag); err != nil {
		return nil, &Error{Kind: KindSchemaViolation, Message: err.Error()}
	}
	return frag, nil
}

func translateNode(raw json.RawMessage, i int) (graph.Node, error) {
	// Positional short form: [x, y, z].
	var coords []float64
	if err := json.Unmarshal(raw, &coords); err == nil {
		if len(coords) != 3 {
			return graph.Node{}, schemaErr(fmt.Sprintf("nodes[%d]", i), "positional node needs exactly x, y, z")
		}
		n := graph.Node{
			Label: fmt.Sprintf("Node %d", i+1),
			X:     coords[0], Y: coords[1], Z: coords[2],
		}
		graph.ApplyNodeDefaults(&n)
		return n, nil
	}

	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return graph.Node{}, schemaErr(fmt.Sprintf("nodes[%d]", i), "must be an object or [x, y, z] list")
	}
	if rn.Label == "" {
		return graph.Node{}, schemaErr(fmt.Sprintf("nodes[%d].label", i), "is required")
	}
	if rn.X == nil || rn.Y == nil || rn.Z == nil {
		return graph.Node{}, schemaErr(fmt.Sprintf("nodes[%d]", i), "x, y and z are required")
	}
	n := graph.Node{
		Label: rn.Label,
		X:     *rn.X, Y: *rn.Y, Z: *rn.Z,
		Color: rn.Color,
		Size:  graph.DefaultNodeSize,
		Extra: rn.Extra,
	}
	if rn.Size != nil {
		n.Size = *rn.Size
	}
	if n.Color == "" {
		n.Color = graph.DefaultNodeColor
	}
	return n, nil
}

func translateEdge(raw json.RawMessage, i int) (graph.FragmentEdge, error) {
	// Positional short form: [source, target] or [source, target, weight].
	var parts []float64
	if err := json.Unmarshal(raw, &parts); err == nil {
		if len(parts) < 2 || len(parts) > 3 {
			return graph.FragmentEdge{}, schemaErr(fmt.Sprintf("edges[%d]", i), "positional edge needs source and target, optionally weight")
		}
		e := graph.FragmentEdge{
			Source: int(parts[0]),
			Target: int(parts[1]),
			Weight: graph.DefaultEdgeWeight,
			Color:  graph.DefaultEdgeColor,
		}
		if len(parts) == 3 {
			e.Weight = parts[2]
		}
		return e, nil
	}

	var re rawEdge
	if err := json.Unmarshal(raw, &re); err != nil {
		return graph.FragmentEdge{}, schemaErr(fmt.Sprintf("edges[%d]", i), "must be an object or [source, target] list")
	}
	if re.Source == nil {
		return graph.FragmentEdge{}, schemaErr(fmt.Sprintf("edges[%d].source_id", i), "is required")
	}
	if re.Target == nil {
		return graph.FragmentEdge{}, schemaErr(fmt.Sprintf("edges[%d].target_id", i), "is required")
	}
	e := graph.FragmentEdge{
		Source:   *re.Source,
		Target:   *re.Target,
		Weight:   graph.DefaultEdgeWeight,
		Directed: re.Directed,
		Color:    re.Color,
		Extra:    re.Extra,
	}
	if re.Weight != nil {
		e.Weight = *re.Weight
	}
	if e.Color == "" {
		e.Color = graph.DefaultEdgeColor
	}
	return e, nil
}

func schemaErr(where, msg string) *Error {
	return &Error{Kind: KindSchemaViolation, Message: msg, Where: where}
}
