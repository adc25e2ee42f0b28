// Package storage persists extracted symbol graphs so the CLI and the
// MCP server can answer queries without re-running extraction.
//
// Backends must be safe for concurrent use.
package storage

import (
	"context"

	"github.com/ajacobm/symgraph/internal/graph"
)

// Direction selects which side of an edge a traversal follows.
type Direction string

const (
	// DirIncoming walks edges arriving at a node (callers, accessors).
	DirIncoming Direction = "incoming"

	// DirOutgoing walks edges leaving a node (callees, accessed fields).
	DirOutgoing Direction = "outgoing"
)

// Related pairs a neighboring node with the edge that reached it.
type Related struct {
	Node *graph.SymbolNode `json:"node"`
	Edge *graph.SymbolEdge `json:"edge"`
}

// Backend is the protocol every storage implementation satisfies.
type Backend interface {
	// Initialize opens or creates the store at the given path. When
	// readOnly is true, mutation calls fail.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// BulkLoad replaces the entire store with the contents of the graph.
	BulkLoad(ctx context.Context, g *graph.SymbolGraph) error

	// GetNode returns a node by canonical id, or nil when absent.
	GetNode(ctx context.Context, id string) (*graph.SymbolNode, error)

	// FindByName returns every node whose short name matches exactly.
	// Distinct symbols sharing a name all come back; the caller
	// disambiguates by id.
	FindByName(ctx context.Context, name string) ([]*graph.SymbolNode, error)

	// NodesByKind returns all nodes of one kind.
	NodesByKind(ctx context.Context, kind graph.SymbolKind) ([]*graph.SymbolNode, error)

	// Related returns the immediate neighbors of a node in one
	// direction, optionally filtered by edge type ("" means any).
	Related(ctx context.Context, id string, dir Direction, edgeType graph.EdgeType) ([]Related, error)

	// Traverse walks breadth-first from a start node, bounded by depth.
	// The start node itself is not part of the result.
	Traverse(ctx context.Context, startID string, depth int, dir Direction, edgeType graph.EdgeType) ([]*graph.SymbolNode, error)

	// Metadata returns the metadata of the last BulkLoad, or nil when
	// the store is empty.
	Metadata(ctx context.Context) (*graph.GraphMetadata, error)

	// NodeCount and EdgeCount report the stored table sizes.
	NodeCount() int
	EdgeCount() int
}
