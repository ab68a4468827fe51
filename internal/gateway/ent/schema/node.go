package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Node holds the schema definition for the Node entity.
type Node struct {
	ent.Schema
}

// Fields of the Node.
func (Node) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("node_id").
			Unique().
			Immutable(),
		field.String("label").
			NotEmpty(),
		field.Float("x"),
		field.Float("y"),
		field.Float("z"),
		field.String("color").
			Default("#3498db"),
		field.Float("size").
			Default(1.0),
		field.Int("ord").
			Default(0),
		field.JSON("extra_data", map[string]any{}).
			Optional(),
	}
}

// Edges of the Node.
func (Node) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("graph", Graph.Type).
			Ref("nodes").
			Unique().
			Required(),
	}
}

// Indexes of the Node.
func (Node) Indexes() []ent.Index {
	return []ent.Index{
		index.Edges("graph").Fields("ord"),
	}
}
