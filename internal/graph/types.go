// Package graph provides foreign key dependency structures for modlens:
// a table-level graph with topological ordering and a record-level index.
package graph

import (
	"sort"

	"github.com/dbsmedya/modlens/internal/types"
)

// Node represents a table in the dependency graph.
type Node struct {
	Name       string   // Table name
	PrimaryKey []string // Primary key columns
	IsOrigin   bool     // True if the table is the terminal of its FK chain
}

// Edge represents a dependency relationship between tables.
type Edge struct {
	From string // Parent table name
	To   string // Child table name
}

// EdgeMeta contains metadata about one FK column behind an edge.
type EdgeMeta struct {
	ForeignKey   string // FK column in child table
	ReferenceKey string // PK column in parent table
	Origin       types.Origin
}

// Graph represents the FK dependency structure between tables. Edges point
// from parent (referenced) to child (referencing) tables. Several FK
// columns between the same pair share one edge; self references are kept
// as metadata only and do not constrain ordering.
type Graph struct {
	Nodes        map[string]*Node    // table name -> node
	Children     map[string][]string // table name -> child table names (outgoing edges)
	Parents      map[string][]string // table name -> parent table names (incoming edges)
	edgeMetadata map[Edge][]*EdgeMeta
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:        make(map[string]*Node),
		Children:     make(map[string][]string),
		Parents:      make(map[string][]string),
		edgeMetadata: make(map[Edge][]*EdgeMeta),
	}
}

// AddNode adds a table node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes[name] = node
}

// AddEdge adds a parent -> child relationship to the graph.
// It also maintains the reverse mapping for efficient parent lookups.
// Duplicate edges and self references are ignored.
func (g *Graph) AddEdge(parent, child string) {
	if parent == child {
		return
	}
	for _, c := range g.Children[parent] {
		if c == child {
			return
		}
	}

	g.Children[parent] = insertSorted(g.Children[parent], child)
	g.Parents[child] = insertSorted(g.Parents[child], parent)
}

// AddEdgeWithMeta adds an edge with metadata about the FK column behind it.
func (g *Graph) AddEdgeWithMeta(parent, child string, meta EdgeMeta) {
	g.AddEdge(parent, child)

	edge := Edge{From: parent, To: child}
	m := meta
	g.edgeMetadata[edge] = append(g.edgeMetadata[edge], &m)
}

// GetChildren returns all direct children of a table.
func (g *Graph) GetChildren(parent string) []string {
	return g.Children[parent]
}

// GetParents returns all direct parents of a table.
func (g *Graph) GetParents(child string) []string {
	return g.Parents[child]
}

// GetNode returns the node for a given table name, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// GetEdgeMeta returns the FK columns behind an edge, or nil if not found.
func (g *Graph) GetEdgeMeta(parent, child string) []*EdgeMeta {
	return g.edgeMetadata[Edge{From: parent, To: child}]
}

// SelfReferences returns the FK columns of a table that point at itself.
func (g *Graph) SelfReferences(table string) []*EdgeMeta {
	return g.edgeMetadata[Edge{From: table, To: table}]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.Children {
		count += len(children)
	}
	return count
}

// AllNodes returns every table name in sorted order.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// AllEdges returns every edge sorted by parent then child.
func (g *Graph) AllEdges() []Edge {
	var edges []Edge
	for _, parent := range g.AllNodes() {
		for _, child := range g.Children[parent] {
			edges = append(edges, Edge{From: parent, To: child})
		}
	}
	return edges
}

// LeafNodes returns all nodes with no children (leaf tables), sorted.
func (g *Graph) LeafNodes() []string {
	var leaves []string
	for _, name := range g.AllNodes() {
		if len(g.Children[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// InDegree returns the number of incoming edges (parents) for a node.
func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}

// OutDegree returns the number of outgoing edges (children) for a node.
func (g *Graph) OutDegree(name string) int {
	return len(g.Children[name])
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
