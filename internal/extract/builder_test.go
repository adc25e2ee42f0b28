package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// fixtureSource is a small module exercising every relationship family:
// embedding, interface satisfaction, composition, invocation, and
// field access.
const fixtureSource = `package fixture

type Greeter interface {
	Greet(name string) string
}

type Base struct {
	ID int
}

type Person struct {
	Base
	Name string
}

func (p *Person) Greet(name string) string {
	p.Name = name
	return "hi " + p.Name
}

func Hello(p *Person) string {
	return p.Greet("world")
}

func Shout(p *Person) string {
	return p.Greet(Hello(p))
}

func Twice(p *Person) {
	p.Greet("a")
	p.Greet("b")
}

func Pick(n int) string {
	if n > 0 {
		return "pos"
	}
	return "neg"
}

var DefaultPerson = Person{}

const Version = "1"
`

const (
	pkgID        = "package:example.com/fixture"
	greeterID    = "type:example.com/fixture.Greeter"
	baseID       = "type:example.com/fixture.Base"
	personID     = "type:example.com/fixture.Person"
	greetID      = "method:(*example.com/fixture.Person).Greet"
	ifaceGreetID = "method:(example.com/fixture.Greeter).Greet"
	helloID      = "func:example.com/fixture.Hello"
	shoutID      = "func:example.com/fixture.Shout"
	twiceID      = "func:example.com/fixture.Twice"
	pickID       = "func:example.com/fixture.Pick"
	nameFieldID  = "field:example.com/fixture.Person.Name"
	defaultVarID = "var:example.com/fixture.DefaultPerson"
	versionID    = "const:example.com/fixture.Version"
)

func writeFixtureModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"),
		[]byte("module example.com/fixture\n\ngo 1.23\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "fixture.go"),
		[]byte(fixtureSource), 0o644))
	return root
}

func buildFixture(t *testing.T, opts Options) (*graph.SymbolGraph, []string) {
	t.Helper()
	root := writeFixtureModule(t)

	r := &scope.Resolver{}
	res, err := r.Resolve(context.Background(), root, scope.ScopeProject)
	require.NoError(t, err)

	g, warnings, err := NewBuilder(opts, nil).Build(res)
	require.NoError(t, err)
	return g, warnings
}

func edgesBetween(g *graph.SymbolGraph, t graph.EdgeType, src, dst string) []*graph.SymbolEdge {
	var result []*graph.SymbolEdge
	for _, e := range g.Outgoing(src, t) {
		if e.Target == dst {
			result = append(result, e)
		}
	}
	return result
}

func TestBuildCreatesCanonicalNodes(t *testing.T) {
	t.Parallel()

	g, warnings := buildFixture(t, DefaultOptions())
	assert.Empty(t, warnings)

	for _, id := range []string{
		pkgID, greeterID, baseID, personID,
		greetID, ifaceGreetID, helloID, shoutID,
		nameFieldID, defaultVarID, versionID,
	} {
		assert.True(t, g.HasNode(id), "missing node %s", id)
	}

	person := g.GetNode(personID)
	require.NotNil(t, person)
	assert.Equal(t, graph.KindType, person.Kind)
	assert.Equal(t, graph.TypeStruct, person.TypeKind)
	assert.True(t, person.Exported)
	require.NotNil(t, person.Location)
	assert.Equal(t, "fixture.go", person.Location.File)

	greeter := g.GetNode(greeterID)
	require.NotNil(t, greeter)
	assert.Equal(t, graph.TypeInterface, greeter.TypeKind)
}

func TestBuildInvocationEdges(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	// Hello calls Greet exactly once.
	require.Len(t, edgesBetween(g, graph.EdgeInvokes, helloID, greetID), 1)

	// Shout calls both Greet and Hello.
	assert.Len(t, edgesBetween(g, graph.EdgeInvokes, shoutID, greetID), 1)
	assert.Len(t, edgesBetween(g, graph.EdgeInvokes, shoutID, helloID), 1)

	// Two call sites to the same callee stay two edges.
	assert.Len(t, edgesBetween(g, graph.EdgeInvokes, twiceID, greetID), 2)

	// Call edges carry the use site, not the declaration site.
	e := edgesBetween(g, graph.EdgeInvokes, helloID, greetID)[0]
	require.NotNil(t, e.Location)
	assert.Equal(t, "fixture.go", e.Location.File)
	assert.Equal(t, "Hello invokes Greet", e.Label)
}

func TestBuildInheritanceAndImplementation(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	// Person embeds Base.
	assert.Len(t, edgesBetween(g, graph.EdgeInherits, personID, baseID), 1)

	// Person's pointer method set satisfies Greeter; Base's does not.
	assert.Len(t, edgesBetween(g, graph.EdgeImplements, personID, greeterID), 1)
	assert.Empty(t, edgesBetween(g, graph.EdgeImplements, baseID, greeterID))
}

func TestBuildFieldAccessEdges(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	// Greet writes p.Name once and reads it once.
	accesses := edgesBetween(g, graph.EdgeAccesses, greetID, nameFieldID)
	require.Len(t, accesses, 2)

	kinds := map[string]int{}
	for _, e := range accesses {
		kind, _ := e.Properties["access"].(string)
		kinds[kind]++
	}
	assert.Equal(t, 1, kinds["write"])
	assert.Equal(t, 1, kinds["read"])
}

func TestBuildCompositionEdges(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	// Pointer parameter types resolve to their named element type.
	params := edgesBetween(g, graph.EdgeComposedOf, helloID, personID)
	require.Len(t, params, 1)
	assert.Equal(t, "parameter", params[0].Properties["role"])

	// Basic-typed fields and results produce no composition edges.
	assert.Empty(t, g.Outgoing(pickID, graph.EdgeComposedOf))

	// Package-level var composes with its named type.
	assert.Len(t, edgesBetween(g, graph.EdgeComposedOf, defaultVarID, personID), 1)
}

func TestBuildContainmentEdges(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	for _, id := range []string{personID, helloID, nameFieldID, versionID} {
		assert.Len(t, edgesBetween(g, graph.EdgeContainedIn, id, pkgID), 1, "containment for %s", id)
	}
	// The package itself is contained in nothing.
	assert.Empty(t, g.Outgoing(pkgID, graph.EdgeContainedIn))
}

func TestBuildMetrics(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	hello := g.GetNode(helloID)
	require.NotNil(t, hello)
	assert.Equal(t, 1, hello.Metrics.ParameterCount)
	assert.Equal(t, 1, hello.Metrics.Complexity)
	assert.Equal(t, 3, hello.Metrics.LineCount)

	pick := g.GetNode(pickID)
	require.NotNil(t, pick)
	assert.Equal(t, 2, pick.Metrics.Complexity)

	person := g.GetNode(personID)
	require.NotNil(t, person)
	assert.Equal(t, 2, person.Metrics.FieldCount)
	assert.Equal(t, 1, person.Metrics.MethodCount)
}

func TestBuildReferenceCounts(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	for _, node := range g.Nodes() {
		assert.Equal(t, len(g.Incoming(node.ID)), node.Metrics.IncomingRefs, "incoming for %s", node.ID)
		assert.Equal(t, len(g.Outgoing(node.ID)), node.Metrics.OutgoingRefs, "outgoing for %s", node.ID)
	}

	// Greet is called from Hello, Shout, and twice from Twice.
	greet := g.GetNode(greetID)
	require.NotNil(t, greet)
	assert.Len(t, g.Incoming(greetID, graph.EdgeInvokes), 4)
}

func TestBuildReferentialIntegrity(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	for _, e := range g.Edges() {
		assert.True(t, g.HasNode(e.Source), "edge %s has dangling source %s", e.ID, e.Source)
		assert.True(t, g.HasNode(e.Target), "edge %s has dangling target %s", e.ID, e.Target)
		assert.NotEmpty(t, e.Label)
	}
}

func TestBuildTogglesAreIndependent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Options)
		absent graph.EdgeType
		kept   graph.EdgeType
	}{
		{
			name:   "no calls",
			mutate: func(o *Options) { o.IncludeMethodCalls = false },
			absent: graph.EdgeInvokes,
			kept:   graph.EdgeImplements,
		},
		{
			name:   "no inheritance",
			mutate: func(o *Options) { o.IncludeInheritance = false },
			absent: graph.EdgeInherits,
			kept:   graph.EdgeInvokes,
		},
		{
			name:   "no field access",
			mutate: func(o *Options) { o.IncludeFieldAccess = false },
			absent: graph.EdgeAccesses,
			kept:   graph.EdgeInvokes,
		},
		{
			name:   "no namespaces",
			mutate: func(o *Options) { o.IncludeNamespaces = false },
			absent: graph.EdgeContainedIn,
			kept:   graph.EdgeInvokes,
		},
		{
			name:   "no composition",
			mutate: func(o *Options) { o.IncludeComposition = false },
			absent: graph.EdgeComposedOf,
			kept:   graph.EdgeInherits,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			tt.mutate(&opts)
			g, _ := buildFixture(t, opts)

			counts := g.EdgeTypeCounts()
			assert.Zero(t, counts[tt.absent])
			assert.Positive(t, counts[tt.kept])
		})
	}
}

func TestBuildNoInheritanceStillSuppressesImplements(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.IncludeInheritance = false
	g, _ := buildFixture(t, opts)

	assert.Zero(t, g.EdgeTypeCounts()[graph.EdgeImplements])
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	first, _ := buildFixture(t, DefaultOptions())
	second, _ := buildFixture(t, DefaultOptions())

	assert.Equal(t, first.NodeCount(), second.NodeCount())
	assert.Equal(t, first.EdgeCount(), second.EdgeCount())

	firstIDs := make([]string, 0, first.NodeCount())
	for _, n := range first.Nodes() {
		firstIDs = append(firstIDs, n.ID)
	}
	secondIDs := make([]string, 0, second.NodeCount())
	for _, n := range second.Nodes() {
		secondIDs = append(secondIDs, n.ID)
	}
	assert.Equal(t, firstIDs, secondIDs)
}

func TestBuildMetadata(t *testing.T) {
	t.Parallel()

	g, _ := buildFixture(t, DefaultOptions())

	meta := g.Metadata
	require.NotNil(t, meta)
	assert.Equal(t, "project", meta.Scope)
	assert.Equal(t, "example.com/fixture", meta.ModulePath)
	assert.Equal(t, []string{"fixture.go"}, meta.ProcessedFiles)
	assert.Equal(t, g.NodeCount(), meta.TotalNodes)
	assert.Equal(t, g.EdgeCount(), meta.TotalEdges)
	assert.Equal(t, 3, meta.MaxDepth)
	assert.False(t, meta.GeneratedAt.IsZero())

	// The per-kind and per-type histograms partition the totals.
	var nodeSum int
	for _, n := range meta.NodeKindCounts {
		nodeSum += n
	}
	assert.Equal(t, meta.TotalNodes, nodeSum)

	var edgeSum int
	for _, n := range meta.EdgeTypeCounts {
		edgeSum += n
	}
	assert.Equal(t, meta.TotalEdges, edgeSum)
}

// TestBuildFileScope extracts a single file out of a two-file package.
// Only the named file's declarations become located nodes; symbols it
// references from the sibling file come back location-free, and
// symbols it never touches stay out of the graph entirely.
func TestBuildFileScope(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := map[string]string{
		"go.mod": "module example.com/fixture\n\ngo 1.23\n",
		"a.go": `package fixture

type A struct{}

func (a A) M(b B) string {
	return b.N()
}
`,
		"b.go": `package fixture

type B struct{}

func (b B) N() string { return "n" }

func Stray() {}
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	r := &scope.Resolver{}
	res, err := r.Resolve(context.Background(), filepath.Join(root, "a.go"), scope.ScopeFile)
	require.NoError(t, err)

	g, warnings, err := NewBuilder(DefaultOptions(), nil).Build(res)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	aID := "type:example.com/fixture.A"
	bID := "type:example.com/fixture.B"
	mID := "method:(example.com/fixture.A).M"
	nID := "method:(example.com/fixture.B).N"

	for _, id := range []string{aID, bID, mID, nID} {
		assert.True(t, g.HasNode(id), "missing node %s", id)
	}

	// Exactly one invocation, M to N, and no inheritance anywhere.
	require.Len(t, edgesBetween(g, graph.EdgeInvokes, mID, nID), 1)
	assert.Equal(t, 1, g.EdgeTypeCounts()[graph.EdgeInvokes])
	assert.Zero(t, g.EdgeTypeCounts()[graph.EdgeInherits])

	// Located nodes all live in the resolved file; referenced symbols
	// from the sibling file carry no location.
	for _, node := range g.Nodes() {
		if node.Location != nil {
			assert.Equal(t, "a.go", node.Location.File, "location of %s", node.ID)
		}
	}
	require.NotNil(t, g.GetNode(bID))
	assert.Nil(t, g.GetNode(bID).Location)
	require.NotNil(t, g.GetNode(nID))
	assert.Nil(t, g.GetNode(nID).Location)

	// Unreferenced sibling-file symbols never enter the graph.
	assert.False(t, g.HasNode("func:example.com/fixture.Stray"))

	meta := g.Metadata
	require.NotNil(t, meta)
	assert.Equal(t, "file", meta.Scope)
	assert.Equal(t, []string{"a.go"}, meta.ProcessedFiles)
}

func TestBuildFailsWithoutAnySemanticModel(t *testing.T) {
	t.Parallel()

	// A document whose package never type-checked has no semantic
	// model at all.
	res := &scope.Resolution{
		Scope:     scope.ScopeFile,
		RootPath:  t.TempDir(),
		Documents: []scope.Document{{Path: "broken.go", Pkg: &packages.Package{}}},
	}

	_, warnings, err := NewBuilder(DefaultOptions(), nil).Build(res)
	assert.ErrorIs(t, err, scope.ErrUnresolvable)
	assert.NotEmpty(t, warnings)
}

func TestEngineRejectsUnknownScope(t *testing.T) {
	t.Parallel()

	_, _, err := NewEngine(nil).Extract(context.Background(), ".", "galaxy", DefaultOptions())
	assert.ErrorIs(t, err, scope.ErrInvalidScope)
}

func TestEngineRejectsMissingPath(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nowhere")
	_, _, err := NewEngine(nil).Extract(context.Background(), missing, "project", DefaultOptions())
	assert.ErrorIs(t, err, scope.ErrNotFound)
}
