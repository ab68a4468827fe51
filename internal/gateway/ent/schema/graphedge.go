package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// GraphEdge holds the schema definition for the GraphEdge entity. The name
// avoids clashing with ent's own edge terminology.
type GraphEdge struct {
	ent.Schema
}

// Fields of the GraphEdge.
func (GraphEdge) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("edge_id").
			Unique().
			Immutable(),
		field.String("source_id").
			NotEmpty(),
		field.String("target_id").
			NotEmpty(),
		field.Float("weight").
			Default(1.0),
		field.Bool("directed").
			Default(false),
		field.String("color").
			Default("#95a5a6"),
		field.Int("ord").
			Default(0),
		field.JSON("extra_data", map[string]any{}).
			Optional(),
	}
}

// Edges of the GraphEdge.
func (GraphEdge) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("graph", Graph.Type).
			Ref("edges").
			Unique().
			Required(),
	}
}

// Indexes of the GraphEdge.
func (GraphEdge) Indexes() []ent.Index {
	return []ent.Index{
		index.Edges("graph").Fields("ord"),
	}
}
