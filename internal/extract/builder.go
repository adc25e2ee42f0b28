package extract

import (
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// Options toggles the relationship extractor families. Each family is
// independent: disabling one never affects the edges of another.
type Options struct {
	IncludeInheritance bool `json:"includeInheritance"`
	IncludeMethodCalls bool `json:"includeMethodCalls"`
	IncludeFieldAccess bool `json:"includeFieldAccess"`
	IncludeNamespaces  bool `json:"includeNamespaces"`
	IncludeComposition bool `json:"includeComposition"`

	// MaxDepth is recorded in the graph metadata and bounds
	// depth-limited traversal queries over the stored graph. The base
	// extraction is single-hop per extractor regardless of its value.
	MaxDepth int `json:"maxDepth"`
}

// DefaultOptions enables every extractor family.
func DefaultOptions() Options {
	return Options{
		IncludeInheritance: true,
		IncludeMethodCalls: true,
		IncludeFieldAccess: true,
		IncludeNamespaces:  true,
		IncludeComposition: true,
		MaxDepth:           3,
	}
}

// Builder constructs symbol graphs from resolved document sets.
type Builder struct {
	opts Options
	log  *slog.Logger
}

// NewBuilder creates a builder. A nil logger falls back to the default.
func NewBuilder(opts Options, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{opts: opts, log: log}
}

// buildContext is the shared state of exactly one extraction call. It
// is created at the start of Build and never escapes it, so concurrent
// extraction calls cannot interfere.
type buildContext struct {
	g    *graph.SymbolGraph
	opts Options
	log  *slog.Logger

	warnings []string
	edgeSeq  int

	// processed maps absolute paths of in-scope documents to their
	// root-relative form. Symbols declared elsewhere get no location.
	processed map[string]string
	rootPath  string

	// fieldOwners records the declaring type of each struct field seen
	// during the declaration pass, so member-access edges resolve
	// promoted fields to their canonical owner.
	fieldOwners map[*types.Var]string

	// concrete and ifaces feed the implementation pass that runs after
	// every document has been visited.
	concrete []*types.Named
	ifaces   []*types.Named

	// complexity maps "file:line" of a function declaration to its
	// structural cyclomatic complexity.
	complexity map[string]int
}

// Build traverses every document in order and returns the finished
// graph plus the non-fatal warning list. Per-symbol failures are
// recorded and skipped; the caller always receives a best-effort
// graph. The only error is a scope with no semantic model at all.
func (b *Builder) Build(res *scope.Resolution) (*graph.SymbolGraph, []string, error) {
	bc := &buildContext{
		g:           graph.NewSymbolGraph(),
		opts:        b.opts,
		log:         b.log,
		warnings:    append([]string(nil), res.Warnings...),
		processed:   make(map[string]string),
		rootPath:    res.RootPath,
		fieldOwners: make(map[*types.Var]string),
		complexity:  make(map[string]int),
	}

	var resolved []scope.Document
	for _, doc := range res.Documents {
		if doc.Pkg.TypesInfo == nil || doc.Pkg.Types == nil {
			bc.warn(doc.Path, "%v: no semantic model", scope.ErrUnresolvable)
			continue
		}
		bc.processed[doc.Path] = bc.relPath(doc.Path)
		resolved = append(resolved, doc)
	}
	if len(resolved) == 0 && len(res.Documents) > 0 {
		return nil, bc.warnings, fmt.Errorf("%w: no semantic model for any document", scope.ErrUnresolvable)
	}

	// Declaration pass: nodes, inheritance, composition, containment,
	// per-symbol metrics.
	for _, doc := range resolved {
		bc.collectComplexity(doc)
		bc.processDeclarations(doc)
	}

	// Expression pass: invocation and member-access edges, oriented
	// caller to callee and accessor to accessed.
	for _, doc := range resolved {
		bc.processExpressions(doc)
	}

	// Implementation pass needs the full set of declared types.
	if b.opts.IncludeInheritance {
		bc.extractImplementations()
	}

	bc.g.FinalizeReferenceCounts()
	bc.finalizeMetadata(res)

	return bc.g, bc.warnings, nil
}

func (c *buildContext) warn(document, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if document != "" {
		msg = c.relPath(document) + ": " + msg
	}
	c.warnings = append(c.warnings, msg)
	c.log.Warn("extraction warning", "detail", msg)
}

func (c *buildContext) relPath(path string) string {
	if rel, err := filepath.Rel(c.rootPath, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// location returns a Location only for positions inside a processed
// document. Symbols declared outside the extracted scope stay
// location-free so edges referencing them remain resolvable without
// leaking paths from other modules.
func (c *buildContext) location(fset *token.FileSet, pos, end token.Pos) *graph.Location {
	if !pos.IsValid() {
		return nil
	}
	p := fset.Position(pos)
	rel, ok := c.processed[p.Filename]
	if !ok {
		return nil
	}
	loc := &graph.Location{File: rel, Line: p.Line, Column: p.Column}
	if end.IsValid() {
		loc.EndLine = fset.Position(end).Line
	}
	return loc
}

// addEdge appends one relationship occurrence. Edge ids come from a
// per-call monotonic counter, so they are dense and collision-free.
func (c *buildContext) addEdge(t graph.EdgeType, src, dst *graph.SymbolNode, loc *graph.Location, props map[string]any) {
	if src == nil || dst == nil {
		return
	}
	c.edgeSeq++
	c.g.AddEdge(&graph.SymbolEdge{
		ID:         fmt.Sprintf("e%d", c.edgeSeq),
		Type:       t,
		Source:     src.ID,
		Target:     dst.ID,
		Label:      graph.EdgeLabel(t, src.Name, dst.Name),
		Location:   loc,
		Properties: props,
	})
}

// ensurePackage returns the package node, creating it on first sight.
// Returns nil when namespace extraction is disabled.
func (c *buildContext) ensurePackage(pkg *types.Package) *graph.SymbolNode {
	if !c.opts.IncludeNamespaces || pkg == nil {
		return nil
	}
	return c.g.AddNode(&graph.SymbolNode{
		ID:       PackageID(pkg.Path()),
		Name:     pkg.Name(),
		FullName: pkg.Path(),
		Kind:     graph.KindPackage,
		Exported: true,
	})
}

// contain links a symbol to its immediate package. Skipped when the
// symbol has no package (universe scope) or namespaces are disabled.
func (c *buildContext) contain(node *graph.SymbolNode, pkg *types.Package) {
	pkgNode := c.ensurePackage(pkg)
	if pkgNode == nil || node == nil {
		return
	}
	c.addEdge(graph.EdgeContainedIn, node, pkgNode, nil, nil)
}

// ensureSymbol returns the node for an object observed at a use site,
// creating a location-less node for symbols declared outside the
// processed documents (e.g. imported libraries) so edges referencing
// them always have both endpoints in the table.
func (c *buildContext) ensureSymbol(fset *token.FileSet, obj types.Object) *graph.SymbolNode {
	switch o := obj.(type) {
	case *types.Func:
		kind := graph.KindFunc
		if o.Signature().Recv() != nil {
			kind = graph.KindMethod
		}
		return c.g.AddNode(&graph.SymbolNode{
			ID:       FuncID(o),
			Name:     o.Name(),
			FullName: o.FullName(),
			Kind:     kind,
			Location: c.location(fset, o.Pos(), token.NoPos),
			Exported: o.Exported(),
		})
	case *types.TypeName:
		return c.g.AddNode(&graph.SymbolNode{
			ID:       TypeID(o),
			Name:     o.Name(),
			FullName: qualifiedName(o),
			Kind:     graph.KindType,
			TypeKind: typeKindOf(o),
			Location: c.location(fset, o.Pos(), token.NoPos),
			Exported: o.Exported(),
		})
	default:
		return nil
	}
}

// ensureNamedType returns the node for a named type reached through a
// composition or inheritance relationship.
func (c *buildContext) ensureNamedType(fset *token.FileSet, named *types.Named) *graph.SymbolNode {
	return c.ensureSymbol(fset, named.Obj())
}

// ensureField returns the node for a struct field, keyed by the full
// name of its declaring type.
func (c *buildContext) ensureField(fset *token.FileSet, owner string, field *types.Var) *graph.SymbolNode {
	return c.g.AddNode(&graph.SymbolNode{
		ID:       FieldID(owner, field.Name()),
		Name:     field.Name(),
		FullName: owner + "." + field.Name(),
		Kind:     graph.KindField,
		Location: c.location(fset, field.Pos(), token.NoPos),
		Exported: field.Exported(),
	})
}

func (c *buildContext) finalizeMetadata(res *scope.Resolution) {
	files := make([]string, 0, len(c.processed))
	for _, rel := range c.processed {
		files = append(files, rel)
	}
	sort.Strings(files)

	c.g.Metadata = &graph.GraphMetadata{
		Scope:          string(res.Scope),
		RootPath:       res.RootPath,
		ModulePath:     res.ModulePath,
		GeneratedAt:    time.Now().UTC(),
		TotalNodes:     c.g.NodeCount(),
		TotalEdges:     c.g.EdgeCount(),
		NodeKindCounts: c.g.NodeKindCounts(),
		EdgeTypeCounts: c.g.EdgeTypeCounts(),
		ProcessedFiles: files,
		MaxDepth:       c.opts.MaxDepth,
	}
}

// typeKindOf decides the closed subtype of a named type once, at node
// creation.
func typeKindOf(obj *types.TypeName) graph.TypeKind {
	if obj.IsAlias() {
		return graph.TypeAlias
	}
	switch obj.Type().Underlying().(type) {
	case *types.Struct:
		return graph.TypeStruct
	case *types.Interface:
		return graph.TypeInterface
	case *types.Signature:
		return graph.TypeFunc
	case *types.Basic:
		return graph.TypeBasic
	default:
		return graph.TypeDefined
	}
}

// namedOf unwraps pointers, slices, arrays, maps, and channels until a
// named type is found. Basic and anonymous types yield nil: they never
// become graph nodes.
func namedOf(t types.Type) *types.Named {
	for {
		switch tt := t.(type) {
		case *types.Named:
			return tt
		case *types.Pointer:
			t = tt.Elem()
		case *types.Slice:
			t = tt.Elem()
		case *types.Array:
			t = tt.Elem()
		case *types.Map:
			t = tt.Elem()
		case *types.Chan:
			t = tt.Elem()
		case *types.Alias:
			t = types.Unalias(tt)
		default:
			return nil
		}
	}
}
