package graph

import (
	"reflect"
	"testing"

	"github.com/dbsmedya/modlens/internal/types"
)

func TestNewGraph(t *testing.T) {
	g := NewGraph()

	if g.NodeCount() != 0 {
		t.Errorf("Expected empty graph, got %d nodes", g.NodeCount())
	}
	if g.EdgeCount() != 0 {
		t.Errorf("Expected no edges, got %d", g.EdgeCount())
	}
}

func TestAddNode(t *testing.T) {
	g := NewGraph()
	g.AddNode("Units", &Node{PrimaryKey: []string{"UnitType"}, IsOrigin: true})
	g.AddNode("Types", nil)

	node := g.GetNode("Units")
	if node == nil {
		t.Fatal("Units node not found")
	}
	if node.Name != "Units" {
		t.Errorf("Expected name to be set from key, got %q", node.Name)
	}
	if !node.IsOrigin {
		t.Error("Expected Units to be an origin")
	}
	if g.GetNode("Types") == nil || g.GetNode("Types").Name != "Types" {
		t.Error("nil node should create a default node")
	}
	if g.GetNode("Missing") != nil {
		t.Error("Expected nil for unknown node")
	}
}

func TestAddEdge_Dedup(t *testing.T) {
	g := NewGraph()
	g.AddNode("Units", nil)
	g.AddNode("UnitUpgrades", nil)

	g.AddEdge("Units", "UnitUpgrades")
	g.AddEdge("Units", "UnitUpgrades")

	if g.EdgeCount() != 1 {
		t.Errorf("Expected duplicate edges to collapse, got %d edges", g.EdgeCount())
	}
	if !reflect.DeepEqual(g.GetParents("UnitUpgrades"), []string{"Units"}) {
		t.Errorf("Unexpected parents %v", g.GetParents("UnitUpgrades"))
	}
}

func TestAddEdgeWithMeta_MultipleColumns(t *testing.T) {
	g := NewGraph()
	g.AddNode("Units", nil)
	g.AddNode("UnitUpgrades", nil)

	g.AddEdgeWithMeta("Units", "UnitUpgrades", EdgeMeta{ForeignKey: "Unit", ReferenceKey: "UnitType", Origin: types.OriginMined})
	g.AddEdgeWithMeta("Units", "UnitUpgrades", EdgeMeta{ForeignKey: "UpgradeUnit", ReferenceKey: "UnitType", Origin: types.OriginMined})

	if g.EdgeCount() != 1 {
		t.Errorf("Expected one edge, got %d", g.EdgeCount())
	}
	meta := g.GetEdgeMeta("Units", "UnitUpgrades")
	if len(meta) != 2 {
		t.Fatalf("Expected 2 FK columns behind the edge, got %d", len(meta))
	}
	if meta[0].ForeignKey != "Unit" || meta[1].ForeignKey != "UpgradeUnit" {
		t.Errorf("Unexpected metadata order: %s, %s", meta[0].ForeignKey, meta[1].ForeignKey)
	}
	if g.GetEdgeMeta("UnitUpgrades", "Units") != nil {
		t.Error("Expected no metadata for reversed edge")
	}
}

func TestAddEdgeWithMeta_SelfReference(t *testing.T) {
	g := NewGraph()
	g.AddNode("Units", nil)
	g.AddEdgeWithMeta("Units", "Units", EdgeMeta{ForeignKey: "ReplacesUnit", ReferenceKey: "UnitType"})

	if g.EdgeCount() != 0 {
		t.Errorf("Self references must not add edges, got %d", g.EdgeCount())
	}
	if len(g.SelfReferences("Units")) != 1 {
		t.Errorf("Expected self reference metadata, got %v", g.SelfReferences("Units"))
	}
	if g.HasCycle() {
		t.Error("A self reference is not a cycle")
	}
}

func TestChildrenSorted(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"Units", "C", "A", "B"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("Units", "C")
	g.AddEdge("Units", "A")
	g.AddEdge("Units", "B")

	if !reflect.DeepEqual(g.GetChildren("Units"), []string{"A", "B", "C"}) {
		t.Errorf("Expected sorted children, got %v", g.GetChildren("Units"))
	}
	if g.OutDegree("Units") != 3 || g.InDegree("A") != 1 || g.InDegree("Units") != 0 {
		t.Error("Unexpected degrees")
	}
}

func TestAllNodesAndEdges(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"Units", "Buildings", "Prereqs"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("Units", "Prereqs")
	g.AddEdge("Buildings", "Prereqs")

	if !reflect.DeepEqual(g.AllNodes(), []string{"Buildings", "Prereqs", "Units"}) {
		t.Errorf("Unexpected nodes %v", g.AllNodes())
	}
	want := []Edge{{From: "Buildings", To: "Prereqs"}, {From: "Units", To: "Prereqs"}}
	if !reflect.DeepEqual(g.AllEdges(), want) {
		t.Errorf("Unexpected edges %v", g.AllEdges())
	}
	if !reflect.DeepEqual(g.LeafNodes(), []string{"Prereqs"}) {
		t.Errorf("Unexpected leaves %v", g.LeafNodes())
	}
	if !g.HasNode("Units") || g.HasNode("units") {
		t.Error("HasNode is exact")
	}
}
