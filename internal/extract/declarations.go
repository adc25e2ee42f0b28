package extract

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// processDeclarations visits every top-level declaration of one
// document, creating (or reusing, by canonical id) symbol nodes and
// running the declaration-driven extractors: inheritance via
// embedding, composition, and package containment.
func (c *buildContext) processDeclarations(doc scope.Document) {
	c.ensurePackage(doc.Pkg.Types)

	for _, decl := range doc.File.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			c.declareFunc(doc, d)
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok {
						c.declareType(doc, ts)
					}
				}
			case token.VAR, token.CONST:
				c.declareValues(doc, d)
			}
		}
	}
}

func (c *buildContext) declareFunc(doc scope.Document, d *ast.FuncDecl) {
	fset := doc.Pkg.Fset
	obj, ok := doc.Pkg.TypesInfo.Defs[d.Name].(*types.Func)
	if !ok {
		c.warn(doc.Path, "no resolved symbol for func %s", d.Name.Name)
		return
	}

	sig := obj.Signature()
	kind := graph.KindFunc
	var modifiers []string
	if sig.Recv() != nil {
		kind = graph.KindMethod
		if _, isPtr := sig.Recv().Type().(*types.Pointer); isPtr {
			modifiers = append(modifiers, "pointer_receiver")
		}
	}
	if sig.Variadic() {
		modifiers = append(modifiers, "variadic")
	}
	if sig.TypeParams().Len() > 0 || sig.RecvTypeParams().Len() > 0 {
		modifiers = append(modifiers, "generic")
	}

	loc := c.location(fset, d.Pos(), d.End())
	node := c.g.AddNode(&graph.SymbolNode{
		ID:        FuncID(obj),
		Name:      obj.Name(),
		FullName:  obj.FullName(),
		Kind:      kind,
		Location:  loc,
		Exported:  obj.Exported(),
		Modifiers: modifiers,
		Metrics: graph.SymbolMetrics{
			Complexity:     c.complexityAt(fset, d.Pos()),
			LineCount:      lineSpan(loc),
			ParameterCount: sig.Params().Len(),
		},
	})

	c.contain(node, obj.Pkg())
	if c.opts.IncludeComposition {
		c.extractSignatureComposition(fset, node, sig, loc)
	}
}

func (c *buildContext) declareType(doc scope.Document, ts *ast.TypeSpec) {
	fset := doc.Pkg.Fset
	obj, ok := doc.Pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
	if !ok {
		c.warn(doc.Path, "no resolved symbol for type %s", ts.Name.Name)
		return
	}

	tk := typeKindOf(obj)
	loc := c.location(fset, ts.Pos(), ts.End())
	metrics := graph.SymbolMetrics{LineCount: lineSpan(loc)}
	if named, ok := obj.Type().(*types.Named); ok {
		metrics.MethodCount = named.NumMethods()
	}
	if st, ok := obj.Type().Underlying().(*types.Struct); ok {
		metrics.FieldCount = st.NumFields()
	}

	var modifiers []string
	if named, ok := obj.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
		modifiers = append(modifiers, "generic")
	}

	node := c.g.AddNode(&graph.SymbolNode{
		ID:        TypeID(obj),
		Name:      obj.Name(),
		FullName:  qualifiedName(obj),
		Kind:      graph.KindType,
		TypeKind:  tk,
		Location:  loc,
		Exported:  obj.Exported(),
		Modifiers: modifiers,
		Metrics:   metrics,
	})
	c.contain(node, obj.Pkg())

	switch under := obj.Type().Underlying().(type) {
	case *types.Struct:
		c.declareStructMembers(doc, node, obj, under)
	case *types.Interface:
		c.declareInterfaceMembers(doc, node, obj, under)
	}

	if named, ok := obj.Type().(*types.Named); ok && !obj.IsAlias() {
		if types.IsInterface(named) {
			c.ifaces = append(c.ifaces, named)
		} else {
			c.concrete = append(c.concrete, named)
		}
	}
}

// declareStructMembers creates field nodes, embedding (inheritance)
// edges, and per-field composition edges for a struct type.
func (c *buildContext) declareStructMembers(doc scope.Document, typeNode *graph.SymbolNode, obj *types.TypeName, st *types.Struct) {
	fset := doc.Pkg.Fset
	owner := qualifiedName(obj)

	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		c.fieldOwners[field] = owner
		fieldLoc := c.location(fset, field.Pos(), token.NoPos)

		if field.Embedded() {
			// Embedding is the inheritance relationship; the embedded
			// type's members are promoted into this type.
			if c.opts.IncludeInheritance {
				if named := namedOf(field.Type()); named != nil && !isEmptyInterface(named) {
					target := c.ensureNamedType(fset, named)
					c.addEdge(graph.EdgeInherits, typeNode, target, fieldLoc, nil)
				}
			}
			continue
		}

		fieldNode := c.ensureField(fset, owner, field)
		c.contain(fieldNode, obj.Pkg())

		if c.opts.IncludeComposition {
			if named := namedOf(field.Type()); named != nil {
				target := c.ensureNamedType(fset, named)
				c.addEdge(graph.EdgeComposedOf, typeNode, target, fieldLoc, map[string]any{"via": field.Name()})
			}
		}
	}
}

// declareInterfaceMembers creates method nodes for the interface's
// explicit methods and inheritance edges for embedded interfaces.
func (c *buildContext) declareInterfaceMembers(doc scope.Document, typeNode *graph.SymbolNode, obj *types.TypeName, iface *types.Interface) {
	fset := doc.Pkg.Fset

	for i := 0; i < iface.NumExplicitMethods(); i++ {
		m := iface.ExplicitMethod(i)
		loc := c.location(fset, m.Pos(), token.NoPos)
		node := c.g.AddNode(&graph.SymbolNode{
			ID:       FuncID(m),
			Name:     m.Name(),
			FullName: m.FullName(),
			Kind:     graph.KindMethod,
			Location: loc,
			Exported: m.Exported(),
			Metrics:  graph.SymbolMetrics{ParameterCount: m.Signature().Params().Len()},
		})
		c.contain(node, obj.Pkg())
		if c.opts.IncludeComposition {
			c.extractSignatureComposition(fset, node, m.Signature(), loc)
		}
	}

	if !c.opts.IncludeInheritance {
		return
	}
	for i := 0; i < iface.NumEmbeddeds(); i++ {
		if named := namedOf(iface.EmbeddedType(i)); named != nil && !isEmptyInterface(named) {
			target := c.ensureNamedType(fset, named)
			c.addEdge(graph.EdgeInherits, typeNode, target, typeNode.Location, nil)
		}
	}
}

// declareValues creates nodes for package-level vars and consts.
func (c *buildContext) declareValues(doc scope.Document, d *ast.GenDecl) {
	fset := doc.Pkg.Fset

	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for _, name := range vs.Names {
			if name.Name == "_" {
				continue
			}
			obj := doc.Pkg.TypesInfo.Defs[name]
			if obj == nil {
				c.warn(doc.Path, "no resolved symbol for value %s", name.Name)
				continue
			}

			kind := graph.KindVar
			if _, isConst := obj.(*types.Const); isConst {
				kind = graph.KindConst
			}

			loc := c.location(fset, name.Pos(), token.NoPos)
			node := c.g.AddNode(&graph.SymbolNode{
				ID:       VarID(kind, obj),
				Name:     obj.Name(),
				FullName: qualifiedName(obj),
				Kind:     kind,
				Location: loc,
				Exported: obj.Exported(),
			})
			c.contain(node, obj.Pkg())

			if c.opts.IncludeComposition {
				if named := namedOf(obj.Type()); named != nil {
					target := c.ensureNamedType(fset, named)
					c.addEdge(graph.EdgeComposedOf, node, target, loc, nil)
				}
			}
		}
	}
}

// isEmptyInterface reports whether a named type is an empty interface,
// the Go rendition of the implicit root object type. Inheritance and
// implementation edges to it carry no information and are suppressed.
func isEmptyInterface(named *types.Named) bool {
	iface, ok := named.Underlying().(*types.Interface)
	return ok && iface.Empty()
}

func lineSpan(loc *graph.Location) int {
	if loc == nil || loc.EndLine == 0 {
		return 0
	}
	return loc.EndLine - loc.Line + 1
}
