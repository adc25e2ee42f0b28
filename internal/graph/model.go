// Package graph provides the symbol relationship graph data model.
//
// It defines the node and edge types that represent resolved program
// symbols (packages, types, methods, fields, etc.) and the semantic
// relationships between them (embedding, implementation, composition,
// invocation, member access, package containment).
package graph

import "time"

// SymbolKind classifies a graph node. The set is closed: a node's kind
// is decided once at creation and never re-inspected downstream.
type SymbolKind string

const (
	KindPackage SymbolKind = "package"
	KindType    SymbolKind = "type"
	KindFunc    SymbolKind = "func"
	KindMethod  SymbolKind = "method"
	KindField   SymbolKind = "field"
	KindVar     SymbolKind = "var"
	KindConst   SymbolKind = "const"
	KindParam   SymbolKind = "param"
)

// TypeKind is the category-specific subtype carried by KindType nodes.
type TypeKind string

const (
	TypeStruct    TypeKind = "struct"
	TypeInterface TypeKind = "interface"
	TypeAlias     TypeKind = "alias"
	TypeDefined   TypeKind = "defined"
	TypeFunc      TypeKind = "func"
	TypeBasic     TypeKind = "basic"
)

// EdgeType names why an edge exists. The enumeration is closed.
type EdgeType string

const (
	// EdgeInherits links a type to a type it embeds (struct or
	// interface embedding, the Go rendition of inheritance).
	EdgeInherits EdgeType = "inherits"

	// EdgeImplements links a concrete type to an interface its method
	// set satisfies.
	EdgeImplements EdgeType = "implements"

	// EdgeComposedOf links a symbol to a named type it is built from:
	// field types, parameter types, and non-empty return types.
	EdgeComposedOf EdgeType = "composed_of"

	// EdgeInvokes links a caller to a resolved call target.
	EdgeInvokes EdgeType = "invokes"

	// EdgeAccesses links an accessor to a field it reads or writes.
	EdgeAccesses EdgeType = "accesses"

	// EdgeContainedIn links a non-package symbol to its package.
	EdgeContainedIn EdgeType = "contained_in"
)

// Location is a declaration or use site within a processed document.
type Location struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column,omitempty"`
	EndLine int    `json:"endLine,omitempty"`
}

// SymbolMetrics holds per-symbol static indicators. Counts are zero
// when inapplicable to the symbol's kind. IncomingRefs and
// OutgoingRefs are unknown until the edge set is complete and are
// filled in by FinalizeReferenceCounts.
type SymbolMetrics struct {
	// Complexity is the structural cyclomatic complexity: one plus the
	// number of branch-contributing syntax constructs in the body, as
	// counted by gocyclo. It is not a full control-flow-graph measure.
	Complexity     int `json:"complexity,omitempty"`
	LineCount      int `json:"lineCount,omitempty"`
	ParameterCount int `json:"parameterCount,omitempty"`
	MethodCount    int `json:"methodCount,omitempty"`
	FieldCount     int `json:"fieldCount,omitempty"`
	IncomingRefs   int `json:"incomingRefs"`
	OutgoingRefs   int `json:"outgoingRefs"`
}

// SymbolNode is one canonical symbol. Repeated observations of the
// same logical symbol resolve to a single node; the ID is a pure
// function of the symbol's resolved identity, never of the spelling
// at a use site.
type SymbolNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	FullName string     `json:"fullName"`
	Kind     SymbolKind `json:"kind"`

	// TypeKind is set only for KindType nodes.
	TypeKind TypeKind `json:"typeKind,omitempty"`

	// Location is nil for symbols with no declaration inside the
	// extracted scope (e.g. symbols from imported libraries).
	Location *Location `json:"location,omitempty"`

	Exported  bool     `json:"exported"`
	Modifiers []string `json:"modifiers,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
	Metrics    SymbolMetrics  `json:"metrics"`
}

// SymbolEdge is one observed relationship instance. Multiple edges of
// the same type between the same pair are permitted: each occurrence
// gets its own edge, and deduplication is left to consumers that need
// pure adjacency.
type SymbolEdge struct {
	ID     string   `json:"id"`
	Type   EdgeType `json:"type"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Label  string   `json:"label"`

	// Location is the use site that produced the edge, when known.
	Location *Location `json:"location,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
}

// GraphMetadata describes one extraction run.
type GraphMetadata struct {
	Scope          string             `json:"scope"`
	RootPath       string             `json:"rootPath"`
	ModulePath     string             `json:"modulePath,omitempty"`
	GeneratedAt    time.Time          `json:"generatedAt"`
	TotalNodes     int                `json:"totalNodes"`
	TotalEdges     int                `json:"totalEdges"`
	NodeKindCounts map[SymbolKind]int `json:"nodeKindCounts"`
	EdgeTypeCounts map[EdgeType]int   `json:"edgeTypeCounts"`
	ProcessedFiles []string           `json:"processedFiles"`
	MaxDepth       int                `json:"maxDepth,omitempty"`
}

// GraphStatistics holds whole-graph aggregates computed after the
// tables are final.
type GraphStatistics struct {
	TotalNodes     int     `json:"totalNodes"`
	TotalEdges     int     `json:"totalEdges"`
	ProcessedFiles int     `json:"processedFiles"`
	AvgComplexity  float64 `json:"avgComplexity"`
	MaxIncoming    int     `json:"maxIncomingRefs"`
	MaxOutgoing    int     `json:"maxOutgoingRefs"`
}

// EdgeLabel builds the deterministic human-readable label for an edge.
func EdgeLabel(edgeType EdgeType, sourceName, targetName string) string {
	return sourceName + " " + string(edgeType) + " " + targetName
}
