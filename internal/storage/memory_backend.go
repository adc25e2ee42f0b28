package storage

import (
	"context"
	"sync"

	"github.com/ajacobm/symgraph/internal/graph"
)

// MemoryBackend is an in-memory Backend used by tests and by callers
// that query a freshly extracted graph without persisting it.
type MemoryBackend struct {
	mu       sync.RWMutex
	readOnly bool
	nodes    map[string]*graph.SymbolNode
	byName   map[string][]string
	incoming map[string][]*graph.SymbolEdge
	outgoing map[string][]*graph.SymbolEdge
	edges    int
	meta     *graph.GraphMetadata
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		nodes:    make(map[string]*graph.SymbolNode),
		byName:   make(map[string][]string),
		incoming: make(map[string][]*graph.SymbolEdge),
		outgoing: make(map[string][]*graph.SymbolEdge),
	}
}

// Initialize implements Backend. The path is ignored.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = nil
	m.byName = nil
	m.incoming = nil
	m.outgoing = nil
	m.meta = nil
	return nil
}

// BulkLoad implements Backend.
func (m *MemoryBackend) BulkLoad(ctx context.Context, g *graph.SymbolGraph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readOnly {
		return ErrReadOnly
	}

	m.nodes = make(map[string]*graph.SymbolNode)
	m.byName = make(map[string][]string)
	m.incoming = make(map[string][]*graph.SymbolEdge)
	m.outgoing = make(map[string][]*graph.SymbolEdge)
	m.edges = 0

	for _, node := range g.Nodes() {
		m.nodes[node.ID] = node
		m.byName[node.Name] = append(m.byName[node.Name], node.ID)
	}
	for _, edge := range g.Edges() {
		m.outgoing[edge.Source] = append(m.outgoing[edge.Source], edge)
		m.incoming[edge.Target] = append(m.incoming[edge.Target], edge)
		m.edges++
	}
	m.meta = g.Metadata
	return nil
}

// GetNode implements Backend.
func (m *MemoryBackend) GetNode(ctx context.Context, id string) (*graph.SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[id], nil
}

// FindByName implements Backend.
func (m *MemoryBackend) FindByName(ctx context.Context, name string) ([]*graph.SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []*graph.SymbolNode
	for _, id := range m.byName[name] {
		if node, ok := m.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// NodesByKind implements Backend.
func (m *MemoryBackend) NodesByKind(ctx context.Context, kind graph.SymbolKind) ([]*graph.SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []*graph.SymbolNode
	for _, node := range m.nodes {
		if node.Kind == kind {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// Related implements Backend.
func (m *MemoryBackend) Related(ctx context.Context, id string, dir Direction, edgeType graph.EdgeType) ([]Related, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relatedLocked(id, dir, edgeType), nil
}

func (m *MemoryBackend) relatedLocked(id string, dir Direction, edgeType graph.EdgeType) []Related {
	edges := m.outgoing[id]
	if dir == DirIncoming {
		edges = m.incoming[id]
	}

	var related []Related
	for _, edge := range edges {
		if edgeType != "" && edge.Type != edgeType {
			continue
		}
		neighborID := edge.Target
		if dir == DirIncoming {
			neighborID = edge.Source
		}
		if node, ok := m.nodes[neighborID]; ok {
			related = append(related, Related{Node: node, Edge: edge})
		}
	}
	return related
}

// Traverse implements Backend.
func (m *MemoryBackend) Traverse(ctx context.Context, startID string, depth int, dir Direction, edgeType graph.EdgeType) ([]*graph.SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if depth > 10 {
		depth = 10
	}

	type frontierItem struct {
		id    string
		depth int
	}

	visited := make(map[string]bool)
	var result []*graph.SymbolNode
	queue := []frontierItem{{id: startID}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		if current.id != startID {
			if node, ok := m.nodes[current.id]; ok {
				result = append(result, node)
			}
		}
		if current.depth >= depth {
			continue
		}
		for _, n := range m.relatedLocked(current.id, dir, edgeType) {
			if !visited[n.Node.ID] {
				queue = append(queue, frontierItem{id: n.Node.ID, depth: current.depth + 1})
			}
		}
	}
	return result, nil
}

// Metadata implements Backend.
func (m *MemoryBackend) Metadata(ctx context.Context) (*graph.GraphMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta, nil
}

// NodeCount implements Backend.
func (m *MemoryBackend) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount implements Backend.
func (m *MemoryBackend) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.edges
}
