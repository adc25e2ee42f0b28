package extract

import (
	"go/ast"
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// extractAccess resolves a selector expression that denotes a struct
// field and emits one access edge typed by access kind (read or
// write). Promoted fields resolve to the type that declares them, not
// the type they were reached through, so repeated observations share
// one canonical field node.
func (c *buildContext) extractAccess(doc scope.Document, src *graph.SymbolNode, sel *ast.SelectorExpr, isWrite bool) {
	info := doc.Pkg.TypesInfo
	selection, ok := info.Selections[sel]
	if !ok || selection.Kind() != types.FieldVal {
		return
	}
	field, ok := selection.Obj().(*types.Var)
	if !ok {
		return
	}

	owner := c.fieldOwners[field]
	if owner == "" {
		// Field of a type declared outside the processed documents:
		// derive the owner from the receiver type.
		named := namedOf(selection.Recv())
		if named == nil {
			return
		}
		owner = qualifiedName(named.Obj())
	}

	target := c.ensureField(doc.Pkg.Fset, owner, field)
	access := "read"
	if isWrite {
		access = "write"
	}
	loc := c.location(doc.Pkg.Fset, sel.Pos(), sel.End())
	c.addEdge(graph.EdgeAccesses, src, target, loc, map[string]any{"access": access})
}
