package graph

import (
	"sort"
	"sync"
)

// SymbolGraph is a directed graph of resolved program symbols.
//
// Nodes are keyed by canonical id; adding a node whose id already
// exists is a no-op, so repeated observations of one symbol collapse
// to a single node. Edges are an ordered list: one edge per observed
// relationship occurrence, in insertion order.
//
// A SymbolGraph is owned exclusively by one extraction call while it
// is being built. The lock exists so a finished graph can be shared
// read-only with the storage and export layers.
type SymbolGraph struct {
	mu    sync.RWMutex
	nodes map[string]*SymbolNode
	edges []*SymbolEdge

	byKind     map[SymbolKind]map[string]*SymbolNode
	byEdgeType map[EdgeType]int
	outgoing   map[string][]*SymbolEdge
	incoming   map[string][]*SymbolEdge

	// Metadata and Statistics are set by the builder once the tables
	// are final; nil until then.
	Metadata   *GraphMetadata   `json:"metadata,omitempty"`
	Statistics *GraphStatistics `json:"statistics,omitempty"`
}

// NewSymbolGraph creates a new empty symbol graph.
func NewSymbolGraph() *SymbolGraph {
	return &SymbolGraph{
		nodes:      make(map[string]*SymbolNode),
		byKind:     make(map[SymbolKind]map[string]*SymbolNode),
		byEdgeType: make(map[EdgeType]int),
		outgoing:   make(map[string][]*SymbolEdge),
		incoming:   make(map[string][]*SymbolEdge),
	}
}

// AddNode inserts a node unless a node with the same canonical id
// already exists. It returns the node stored in the table, which is
// the existing node on a duplicate id.
func (g *SymbolGraph) AddNode(node *SymbolNode) *SymbolNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.nodes[node.ID]; ok {
		return existing
	}

	g.nodes[node.ID] = node
	if g.byKind[node.Kind] == nil {
		g.byKind[node.Kind] = make(map[string]*SymbolNode)
	}
	g.byKind[node.Kind][node.ID] = node
	return node
}

// GetNode returns the node with the given id, or nil.
func (g *SymbolGraph) GetNode(id string) *SymbolNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// HasNode reports whether a node with the given id exists.
func (g *SymbolGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// AddEdge appends an edge to the edge list. Both endpoints must
// already exist in the node table; the builder guarantees this by
// creating location-less nodes for library symbols before linking.
func (g *SymbolGraph) AddEdge(edge *SymbolEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = append(g.edges, edge)
	g.byEdgeType[edge.Type]++
	g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	g.incoming[edge.Target] = append(g.incoming[edge.Target], edge)
}

// NodeCount returns the number of nodes.
func (g *SymbolGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *SymbolGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Nodes returns all nodes sorted by id for deterministic output.
func (g *SymbolGraph) Nodes() []*SymbolNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*SymbolNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Edges returns the edge list in insertion order.
func (g *SymbolGraph) Edges() []*SymbolEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*SymbolEdge, len(g.edges))
	copy(result, g.edges)
	return result
}

// NodesByKind returns all nodes with the given kind.
func (g *SymbolGraph) NodesByKind(kind SymbolKind) []*SymbolNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, ok := g.byKind[kind]
	if !ok {
		return nil
	}
	result := make([]*SymbolNode, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Outgoing returns edges originating from the given node id, optionally
// filtered to one edge type.
func (g *SymbolGraph) Outgoing(id string, edgeType ...EdgeType) []*SymbolEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterEdges(g.outgoing[id], edgeType...)
}

// Incoming returns edges targeting the given node id, optionally
// filtered to one edge type.
func (g *SymbolGraph) Incoming(id string, edgeType ...EdgeType) []*SymbolEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterEdges(g.incoming[id], edgeType...)
}

func filterEdges(edges []*SymbolEdge, edgeType ...EdgeType) []*SymbolEdge {
	if len(edges) == 0 {
		return nil
	}
	if len(edgeType) == 0 || edgeType[0] == "" {
		result := make([]*SymbolEdge, len(edges))
		copy(result, edges)
		return result
	}
	var result []*SymbolEdge
	for _, e := range edges {
		if e.Type == edgeType[0] {
			result = append(result, e)
		}
	}
	return result
}

// NodeKindCounts returns the node histogram keyed by kind.
func (g *SymbolGraph) NodeKindCounts() map[SymbolKind]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[SymbolKind]int, len(g.byKind))
	for kind, nodes := range g.byKind {
		counts[kind] = len(nodes)
	}
	return counts
}

// EdgeTypeCounts returns the edge histogram keyed by type.
func (g *SymbolGraph) EdgeTypeCounts() map[EdgeType]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[EdgeType]int, len(g.byEdgeType))
	for t, n := range g.byEdgeType {
		counts[t] = n
	}
	return counts
}

// FinalizeReferenceCounts writes each node's incoming and outgoing
// edge tallies into its metrics. It runs once, after the edge list is
// complete.
func (g *SymbolGraph) FinalizeReferenceCounts() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, node := range g.nodes {
		node.Metrics.IncomingRefs = len(g.incoming[id])
		node.Metrics.OutgoingRefs = len(g.outgoing[id])
	}
}
