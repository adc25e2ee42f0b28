package extract

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// processExpressions walks the body of every top-level declaration,
// resolving invocation and member-access expressions to their denoted
// symbols. Edges are oriented from the enclosing declaration (the
// current context): caller to callee and accessor to accessed. Calls
// inside function literals are attributed to the declaration that
// contains the literal.
func (c *buildContext) processExpressions(doc scope.Document) {
	if !c.opts.IncludeMethodCalls && !c.opts.IncludeFieldAccess {
		return
	}

	info := doc.Pkg.TypesInfo
	for _, decl := range doc.File.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Body == nil {
				continue
			}
			obj, ok := info.Defs[d.Name].(*types.Func)
			if !ok {
				continue
			}
			c.walkBody(doc, c.g.GetNode(FuncID(obj)), d.Body)

		case *ast.GenDecl:
			if d.Tok != token.VAR && d.Tok != token.CONST {
				continue
			}
			// Package-level initializer expressions belong to the
			// declared value itself.
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, name := range vs.Names {
					if name.Name == "_" || i >= len(vs.Values) {
						continue
					}
					obj := info.Defs[name]
					if obj == nil {
						continue
					}
					kind := graph.KindVar
					if _, isConst := obj.(*types.Const); isConst {
						kind = graph.KindConst
					}
					c.walkBody(doc, c.g.GetNode(VarID(kind, obj)), vs.Values[i])
				}
			}
		}
	}
}

func (c *buildContext) walkBody(doc scope.Document, src *graph.SymbolNode, body ast.Node) {
	if src == nil || body == nil {
		return
	}

	writes := collectWriteTargets(body)
	ast.Inspect(body, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.CallExpr:
			if c.opts.IncludeMethodCalls {
				c.extractInvocation(doc, src, e)
			}
		case *ast.SelectorExpr:
			if c.opts.IncludeFieldAccess {
				c.extractAccess(doc, src, e, writes[e])
			}
		}
		return true
	})
}

// collectWriteTargets marks selector expressions that appear on the
// left side of an assignment or in an inc/dec statement, so access
// edges can carry the read/write distinction.
func collectWriteTargets(body ast.Node) map[*ast.SelectorExpr]bool {
	writes := make(map[*ast.SelectorExpr]bool)
	ast.Inspect(body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range s.Lhs {
				if sel, ok := ast.Unparen(lhs).(*ast.SelectorExpr); ok {
					writes[sel] = true
				}
			}
		case *ast.IncDecStmt:
			if sel, ok := ast.Unparen(s.X).(*ast.SelectorExpr); ok {
				writes[sel] = true
			}
		}
		return true
	})
	return writes
}
