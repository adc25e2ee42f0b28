package extract

import (
	"go/ast"
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// extractInvocation resolves a call expression to the function or
// method it denotes and emits one invocation edge per occurrence: two
// calls to the same callee yield two edges. Builtins, conversions, and
// calls through function-typed values have no resolvable declaration
// and are skipped silently.
func (c *buildContext) extractInvocation(doc scope.Document, src *graph.SymbolNode, call *ast.CallExpr) {
	ident := calleeIdent(call)
	if ident == nil {
		return
	}

	info := doc.Pkg.TypesInfo
	obj := info.Uses[ident]
	if obj == nil {
		obj = info.Defs[ident]
	}
	fn, ok := obj.(*types.Func)
	if !ok {
		return
	}

	target := c.ensureSymbol(doc.Pkg.Fset, fn)
	loc := c.location(doc.Pkg.Fset, call.Pos(), call.End())
	c.addEdge(graph.EdgeInvokes, src, target, loc, nil)
}

// calleeIdent finds the identifier naming the call target, looking
// through parentheses and generic instantiation.
func calleeIdent(call *ast.CallExpr) *ast.Ident {
	fun := ast.Unparen(call.Fun)
	if idx, ok := fun.(*ast.IndexExpr); ok {
		fun = ast.Unparen(idx.X)
	} else if idx, ok := fun.(*ast.IndexListExpr); ok {
		fun = ast.Unparen(idx.X)
	}

	switch f := fun.(type) {
	case *ast.Ident:
		return f
	case *ast.SelectorExpr:
		return f.Sel
	default:
		return nil
	}
}
