package extract

import (
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
)

// Canonical ids are pure functions of a symbol's resolved identity,
// never of its spelling at a use site. Two observations of the same
// logical symbol, from any number of files, produce the same id.
//
// Format: {kind}:{qualified name}, e.g.
//
//	package:example.com/m/store
//	type:example.com/m/store.Cache
//	method:(*example.com/m/store.Cache).Get
//	field:example.com/m/store.Cache.size

// PackageID returns the canonical id of a package symbol.
func PackageID(pkgPath string) string {
	return string(graph.KindPackage) + ":" + pkgPath
}

// TypeID returns the canonical id of a named type or alias.
func TypeID(obj *types.TypeName) string {
	return string(graph.KindType) + ":" + qualifiedName(obj)
}

// FuncID returns the canonical id of a function or method. Methods are
// qualified by their receiver via types.Func.FullName, so identically
// named methods on different types never collide.
func FuncID(fn *types.Func) string {
	kind := graph.KindFunc
	if fn.Signature().Recv() != nil {
		kind = graph.KindMethod
	}
	return string(kind) + ":" + fn.FullName()
}

// FieldID returns the canonical id of a struct field, qualified by the
// full name of its declaring type.
func FieldID(ownerFullName, fieldName string) string {
	return string(graph.KindField) + ":" + ownerFullName + "." + fieldName
}

// VarID returns the canonical id of a package-level var or const.
func VarID(kind graph.SymbolKind, obj types.Object) string {
	return string(kind) + ":" + qualifiedName(obj)
}

// qualifiedName prefixes an object name with its package path.
// Universe-scoped objects (error, any) carry no package.
func qualifiedName(obj types.Object) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}
