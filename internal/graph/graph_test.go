package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeNode(id string, kind SymbolKind) *SymbolNode {
	return &SymbolNode{ID: id, Name: id, FullName: "pkg." + id, Kind: kind}
}

func makeEdge(id string, t EdgeType, src, dst string) *SymbolEdge {
	return &SymbolEdge{ID: id, Type: t, Source: src, Target: dst}
}

func TestAddNodeDeduplicatesByID(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	first := g.AddNode(makeNode("func:pkg.A", KindFunc))
	second := g.AddNode(makeNode("func:pkg.A", KindFunc))

	assert.Same(t, first, second)
	assert.Equal(t, 1, g.NodeCount())
}

func TestAddEdgeKeepsEveryOccurrence(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	g.AddNode(makeNode("func:pkg.A", KindFunc))
	g.AddNode(makeNode("func:pkg.B", KindFunc))

	// Same relationship observed twice stays two edges.
	g.AddEdge(makeEdge("e1", EdgeInvokes, "func:pkg.A", "func:pkg.B"))
	g.AddEdge(makeEdge("e2", EdgeInvokes, "func:pkg.A", "func:pkg.B"))

	assert.Equal(t, 2, g.EdgeCount())
	assert.Len(t, g.Outgoing("func:pkg.A", EdgeInvokes), 2)
	assert.Len(t, g.Incoming("func:pkg.B", EdgeInvokes), 2)
}

func TestOutgoingFiltersByEdgeType(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	g.AddNode(makeNode("type:pkg.T", KindType))
	g.AddNode(makeNode("type:pkg.I", KindType))
	g.AddNode(makeNode("package:pkg", KindPackage))

	g.AddEdge(makeEdge("e1", EdgeImplements, "type:pkg.T", "type:pkg.I"))
	g.AddEdge(makeEdge("e2", EdgeContainedIn, "type:pkg.T", "package:pkg"))

	assert.Len(t, g.Outgoing("type:pkg.T"), 2)
	assert.Len(t, g.Outgoing("type:pkg.T", EdgeImplements), 1)
	assert.Empty(t, g.Outgoing("type:pkg.T", EdgeInvokes))
	assert.Empty(t, g.Outgoing("type:pkg.unknown"))
}

func TestNodesSortedByID(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	g.AddNode(makeNode("func:pkg.C", KindFunc))
	g.AddNode(makeNode("func:pkg.A", KindFunc))
	g.AddNode(makeNode("func:pkg.B", KindFunc))

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "func:pkg.A", nodes[0].ID)
	assert.Equal(t, "func:pkg.B", nodes[1].ID)
	assert.Equal(t, "func:pkg.C", nodes[2].ID)
}

func TestNodesByKind(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	g.AddNode(makeNode("func:pkg.A", KindFunc))
	g.AddNode(makeNode("type:pkg.T", KindType))
	g.AddNode(makeNode("func:pkg.B", KindFunc))

	funcs := g.NodesByKind(KindFunc)
	assert.Len(t, funcs, 2)
	assert.Nil(t, g.NodesByKind(KindField))

	counts := g.NodeKindCounts()
	assert.Equal(t, 2, counts[KindFunc])
	assert.Equal(t, 1, counts[KindType])
}

func TestEdgeTypeCounts(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	g.AddNode(makeNode("func:pkg.A", KindFunc))
	g.AddNode(makeNode("func:pkg.B", KindFunc))

	for i := 0; i < 3; i++ {
		g.AddEdge(makeEdge(fmt.Sprintf("e%d", i), EdgeInvokes, "func:pkg.A", "func:pkg.B"))
	}
	g.AddEdge(makeEdge("e3", EdgeAccesses, "func:pkg.A", "func:pkg.B"))

	counts := g.EdgeTypeCounts()
	assert.Equal(t, 3, counts[EdgeInvokes])
	assert.Equal(t, 1, counts[EdgeAccesses])
	assert.Zero(t, counts[EdgeImplements])
}

func TestFinalizeReferenceCounts(t *testing.T) {
	t.Parallel()

	g := NewSymbolGraph()
	a := g.AddNode(makeNode("func:pkg.A", KindFunc))
	b := g.AddNode(makeNode("func:pkg.B", KindFunc))
	c := g.AddNode(makeNode("func:pkg.C", KindFunc))

	g.AddEdge(makeEdge("e1", EdgeInvokes, a.ID, b.ID))
	g.AddEdge(makeEdge("e2", EdgeInvokes, a.ID, c.ID))
	g.AddEdge(makeEdge("e3", EdgeInvokes, c.ID, b.ID))

	g.FinalizeReferenceCounts()

	assert.Equal(t, 0, a.Metrics.IncomingRefs)
	assert.Equal(t, 2, a.Metrics.OutgoingRefs)
	assert.Equal(t, 2, b.Metrics.IncomingRefs)
	assert.Equal(t, 0, b.Metrics.OutgoingRefs)
	assert.Equal(t, 1, c.Metrics.IncomingRefs)
	assert.Equal(t, 1, c.Metrics.OutgoingRefs)
}

func TestEdgeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		edgeType EdgeType
		source   string
		target   string
		expected string
	}{
		{"invokes", EdgeInvokes, "Main", "Run", "Main invokes Run"},
		{"implements", EdgeImplements, "Buffer", "Writer", "Buffer implements Writer"},
		{"contained in", EdgeContainedIn, "Run", "app", "Run contained_in app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, EdgeLabel(tt.edgeType, tt.source, tt.target))
		})
	}
}
