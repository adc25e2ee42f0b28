package extract

import (
	"go/token"
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
)

// extractSignatureComposition emits one composition edge per named
// parameter type and one per named result type. A function with no
// results gets no return edge, and basic builtin types never become
// composition targets.
func (c *buildContext) extractSignatureComposition(fset *token.FileSet, node *graph.SymbolNode, sig *types.Signature, loc *graph.Location) {
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		if named := namedOf(params.At(i).Type()); named != nil {
			target := c.ensureNamedType(fset, named)
			c.addEdge(graph.EdgeComposedOf, node, target, loc, map[string]any{"role": "parameter"})
		}
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		if named := namedOf(results.At(i).Type()); named != nil {
			target := c.ensureNamedType(fset, named)
			c.addEdge(graph.EdgeComposedOf, node, target, loc, map[string]any{"role": "return"})
		}
	}
}
