package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajacobm/symgraph/internal/graph"
)

// Cypher renders the graph as a bulk-import script: a uniqueness
// constraint, one CREATE per node, then one MATCH/CREATE per edge.
// Every node carries the Symbol label plus a kind-specific label so
// queries can filter either way.
func Cypher(g *graph.SymbolGraph) string {
	var b strings.Builder

	b.WriteString("// Symbol graph bulk import\n")
	b.WriteString("CREATE CONSTRAINT symbol_id IF NOT EXISTS FOR (s:Symbol) REQUIRE s.id IS UNIQUE;\n\n")

	for _, n := range g.Nodes() {
		writeNode(&b, n)
	}
	b.WriteString("\n")
	for _, e := range g.Edges() {
		writeEdge(&b, e)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *graph.SymbolNode) {
	props := map[string]any{
		"id":       n.ID,
		"name":     n.Name,
		"fullName": n.FullName,
		"kind":     string(n.Kind),
		"exported": n.Exported,
	}
	if n.TypeKind != "" {
		props["typeKind"] = string(n.TypeKind)
	}
	if n.Location != nil {
		props["file"] = n.Location.File
		props["line"] = n.Location.Line
	}
	if len(n.Modifiers) > 0 {
		props["modifiers"] = strings.Join(n.Modifiers, ",")
	}
	if n.Metrics.Complexity > 0 {
		props["complexity"] = n.Metrics.Complexity
	}
	if n.Metrics.LineCount > 0 {
		props["lineCount"] = n.Metrics.LineCount
	}
	props["incomingRefs"] = n.Metrics.IncomingRefs
	props["outgoingRefs"] = n.Metrics.OutgoingRefs

	fmt.Fprintf(b, "CREATE (:Symbol:%s {%s});\n", kindLabel(n.Kind), propList(props))
}

func writeEdge(b *strings.Builder, e *graph.SymbolEdge) {
	props := map[string]any{"id": e.ID}
	if e.Location != nil {
		props["file"] = e.Location.File
		props["line"] = e.Location.Line
	}
	for k, v := range e.Properties {
		props[k] = v
	}
	fmt.Fprintf(b,
		"MATCH (a:Symbol {id: %s}), (b:Symbol {id: %s}) CREATE (a)-[:%s {%s}]->(b);\n",
		quote(e.Source), quote(e.Target), relType(e.Type), propList(props))
}

// kindLabel maps a node kind to a PascalCase Cypher label.
func kindLabel(k graph.SymbolKind) string {
	switch k {
	case graph.KindPackage:
		return "Package"
	case graph.KindType:
		return "Type"
	case graph.KindFunc:
		return "Func"
	case graph.KindMethod:
		return "Method"
	case graph.KindField:
		return "Field"
	case graph.KindVar:
		return "Var"
	case graph.KindConst:
		return "Const"
	case graph.KindParam:
		return "Param"
	default:
		return "Symbol"
	}
}

// relType maps an edge type to the conventional SCREAMING_SNAKE
// relationship name.
func relType(t graph.EdgeType) string {
	return strings.ToUpper(string(t))
}

// propList renders properties in sorted key order so the script is
// deterministic.
func propList(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+literal(props[k]))
	}
	return strings.Join(parts, ", ")
}

func literal(v any) string {
	switch vv := v.(type) {
	case string:
		return quote(vv)
	case bool:
		return fmt.Sprintf("%t", vv)
	case int:
		return fmt.Sprintf("%d", vv)
	case float64:
		return fmt.Sprintf("%g", vv)
	default:
		return quote(fmt.Sprintf("%v", vv))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
