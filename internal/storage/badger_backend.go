package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/ajacobm/symgraph/internal/graph"
)

// Key prefixes for the different record types.
const (
	prefixNode     = "n:"     // node data
	prefixEdge     = "r:"     // edge data
	prefixIncoming = "i:in:"  // target -> edge type -> edge id
	prefixOutgoing = "i:out:" // source -> edge type -> edge id
	prefixName     = "x:"     // short name -> node id
	keyMetadata    = "m:meta" // metadata of the last bulk load
)

// ErrReadOnly reports a mutation attempted on a read-only store.
var ErrReadOnly = errors.New("store opened read-only")

// BadgerBackend is a BadgerDB-backed store.
type BadgerBackend struct {
	db        *badger.DB
	readOnly  bool
	mu        sync.RWMutex
	nodeCount int
	edgeCount int
}

// NewBadgerBackend creates an uninitialized BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.readOnly = readOnly
	b.recount()
	return nil
}

// recount rebuilds the in-memory table counters from the database.
// Caller must hold the write lock.
func (b *BadgerBackend) recount() {
	b.nodeCount = 0
	b.edgeCount = 0

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		b.nodeCount++
	}
	it.Close()

	opts.Prefix = []byte(prefixEdge)
	it = txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		b.edgeCount++
	}
	it.Close()
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// BulkLoad replaces the entire store with the contents of the graph.
func (b *BadgerBackend) BulkLoad(ctx context.Context, g *graph.SymbolGraph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readOnly {
		return ErrReadOnly
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	b.nodeCount = 0
	b.edgeCount = 0

	for _, node := range g.Nodes() {
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshaling node %s: %w", node.ID, err)
		}
		if err := wb.Set(nodeKey(node.ID), data); err != nil {
			return fmt.Errorf("setting node: %w", err)
		}
		if err := wb.Set(nameKey(node.Name, node.ID), []byte(node.ID)); err != nil {
			return fmt.Errorf("setting name index: %w", err)
		}
		b.nodeCount++
	}

	for _, edge := range g.Edges() {
		data, err := json.Marshal(edge)
		if err != nil {
			return fmt.Errorf("marshaling edge %s: %w", edge.ID, err)
		}
		if err := wb.Set(edgeKey(edge.ID), data); err != nil {
			return fmt.Errorf("setting edge: %w", err)
		}
		if err := indexEdge(wb, edge); err != nil {
			return err
		}
		b.edgeCount++
	}

	if g.Metadata != nil {
		data, err := json.Marshal(g.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		if err := wb.Set([]byte(keyMetadata), data); err != nil {
			return fmt.Errorf("setting metadata: %w", err)
		}
	}

	return wb.Flush()
}

// indexEdge writes the adjacency index entries for one edge.
func indexEdge(wb *badger.WriteBatch, edge *graph.SymbolEdge) error {
	outKey := fmt.Sprintf("%s%s:%s:%s", prefixOutgoing, edge.Source, edge.Type, edge.ID)
	if err := wb.Set([]byte(outKey), []byte(edge.ID)); err != nil {
		return fmt.Errorf("setting outgoing index: %w", err)
	}
	inKey := fmt.Sprintf("%s%s:%s:%s", prefixIncoming, edge.Target, edge.Type, edge.ID)
	if err := wb.Set([]byte(inKey), []byte(edge.ID)); err != nil {
		return fmt.Errorf("setting incoming index: %w", err)
	}
	return nil
}

// GetNode returns a node by id, or nil when absent.
func (b *BadgerBackend) GetNode(ctx context.Context, id string) (*graph.SymbolNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()
	return getNodeTxn(txn, id)
}

func getNodeTxn(txn *badger.Txn, id string) (*graph.SymbolNode, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}

	var node graph.SymbolNode
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling node %s: %w", id, err)
	}
	return &node, nil
}

// FindByName returns every node whose short name matches exactly.
func (b *BadgerBackend) FindByName(ctx context.Context, name string) ([]*graph.SymbolNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	var nodes []*graph.SymbolNode
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixName + name + ":")
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var id string
		if err := it.Item().Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("reading name index: %w", err)
		}
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// NodesByKind returns all nodes of one kind.
func (b *BadgerBackend) NodesByKind(ctx context.Context, kind graph.SymbolKind) ([]*graph.SymbolNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	var nodes []*graph.SymbolNode
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var node graph.SymbolNode
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			continue
		}
		if node.Kind == kind {
			nodes = append(nodes, &node)
		}
	}
	return nodes, nil
}

// Related returns the immediate neighbors of a node in one direction,
// optionally filtered by edge type.
func (b *BadgerBackend) Related(ctx context.Context, id string, dir Direction, edgeType graph.EdgeType) ([]Related, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()
	return relatedTxn(txn, id, dir, edgeType)
}

func relatedTxn(txn *badger.Txn, id string, dir Direction, edgeType graph.EdgeType) ([]Related, error) {
	indexPrefix := prefixOutgoing
	if dir == DirIncoming {
		indexPrefix = prefixIncoming
	}
	prefix := fmt.Sprintf("%s%s:", indexPrefix, id)
	if edgeType != "" {
		prefix = fmt.Sprintf("%s%s:%s:", indexPrefix, id, edgeType)
	}

	var related []Related
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var edgeID string
		if err := it.Item().Value(func(val []byte) error {
			edgeID = string(val)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("reading adjacency index: %w", err)
		}

		item, err := txn.Get(edgeKey(edgeID))
		if err != nil {
			continue
		}
		var edge graph.SymbolEdge
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edge)
		}); err != nil {
			continue
		}

		neighborID := edge.Target
		if dir == DirIncoming {
			neighborID = edge.Source
		}
		node, err := getNodeTxn(txn, neighborID)
		if err != nil || node == nil {
			continue
		}
		related = append(related, Related{Node: node, Edge: &edge})
	}
	return related, nil
}

// Traverse walks breadth-first from a start node, bounded by depth.
func (b *BadgerBackend) Traverse(ctx context.Context, startID string, depth int, dir Direction, edgeType graph.EdgeType) ([]*graph.SymbolNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if depth > 10 {
		depth = 10
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	type frontierItem struct {
		id    string
		depth int
	}

	visited := make(map[string]bool)
	var result []*graph.SymbolNode
	queue := []frontierItem{{id: startID}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		if current.id != startID {
			node, err := getNodeTxn(txn, current.id)
			if err != nil {
				return nil, err
			}
			if node != nil {
				result = append(result, node)
			}
		}

		if current.depth >= depth {
			continue
		}
		neighbors, err := relatedTxn(txn, current.id, dir, edgeType)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if !visited[n.Node.ID] {
				queue = append(queue, frontierItem{id: n.Node.ID, depth: current.depth + 1})
			}
		}
	}
	return result, nil
}

// Metadata returns the metadata of the last BulkLoad.
func (b *BadgerBackend) Metadata(ctx context.Context) (*graph.GraphMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get([]byte(keyMetadata))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting metadata: %w", err)
	}

	var meta graph.GraphMetadata
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return &meta, nil
}

// NodeCount returns the stored node count.
func (b *BadgerBackend) NodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodeCount
}

// EdgeCount returns the stored edge count.
func (b *BadgerBackend) EdgeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.edgeCount
}

func nodeKey(id string) []byte {
	return []byte(prefixNode + id)
}

func edgeKey(id string) []byte {
	return []byte(prefixEdge + id)
}

// nameKey joins the short name and the node id. Colons inside the id
// are harmless: the name index is only scanned by "name:" prefix, and
// names themselves never contain a colon.
func nameKey(name, id string) []byte {
	return []byte(prefixName + strings.TrimSpace(name) + ":" + id)
}
