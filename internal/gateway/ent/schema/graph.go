package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Graph holds the schema definition for the Graph entity.
type Graph struct {
	ent.Schema
}

// Fields of the Graph.
func (Graph) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("graph_id").
			Unique().
			Immutable(),
		field.String("name").
			Default("Untitled Graph"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Graph.
func (Graph) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("nodes", Node.Type),
		edge.To("edges", GraphEdge.Type),
	}
}
