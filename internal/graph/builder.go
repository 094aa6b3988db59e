package graph

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/modlens/internal/schema"
)

// Builder constructs a dependency graph from the relational model.
type Builder struct {
	model *schema.Model
}

// NewBuilder creates a new graph builder for the given model.
func NewBuilder(model *schema.Model) *Builder {
	return &Builder{model: model}
}

// Build adds every table as a node and every declared or mined foreign
// key as an edge from the referenced to the referencing table. Cycles are
// not an error here; they surface from LoadOrder.
func (b *Builder) Build() (*Graph, error) {
	if b.model == nil {
		return nil, fmt.Errorf("relational model is nil")
	}

	g := NewGraph()
	for _, name := range b.model.Tables() {
		t, err := b.model.Table(name)
		if err != nil {
			return nil, err
		}
		g.AddNode(t.Name, &Node{
			PrimaryKey: append([]string(nil), t.PrimaryKey...),
			IsOrigin:   t.IsOrigin,
		})
	}

	for _, parent := range b.model.Tables() {
		for _, fk := range b.model.Referencing(parent) {
			g.AddEdgeWithMeta(fk.ToTable, fk.FromTable, EdgeMeta{
				ForeignKey:   fk.FromColumn,
				ReferenceKey: fk.ToColumn,
				Origin:       fk.Origin,
			})
		}
	}

	return g, nil
}

// FromModel is a convenience function that builds a graph directly from a model.
func FromModel(model *schema.Model) (*Graph, error) {
	return NewBuilder(model).Build()
}

// Subgraph returns the graph restricted to the given tables and every
// table they transitively depend on. Unknown tables are an error.
func (g *Graph) Subgraph(tables ...string) (*Graph, error) {
	keep := make(map[string]bool)
	var stack []string
	for _, t := range tables {
		if !g.HasNode(t) {
			return nil, fmt.Errorf("table %q is not in the dependency graph", t)
		}
		stack = append(stack, t)
	}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep[t] {
			continue
		}
		keep[t] = true
		stack = append(stack, g.Parents[t]...)
	}

	names := make([]string, 0, len(keep))
	for name := range keep {
		names = append(names, name)
	}
	sort.Strings(names)

	sub := NewGraph()
	for _, name := range names {
		n := *g.Nodes[name]
		sub.AddNode(name, &n)
	}
	for _, parent := range names {
		targets := append([]string{parent}, g.Children[parent]...)
		for _, child := range targets {
			if !keep[child] {
				continue
			}
			for _, m := range g.GetEdgeMeta(parent, child) {
				sub.AddEdgeWithMeta(parent, child, *m)
			}
		}
	}
	return sub, nil
}
