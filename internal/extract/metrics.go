package extract

import (
	"fmt"
	"go/token"

	"github.com/fzipp/gocyclo"

	"github.com/ajacobm/symgraph/internal/scope"
)

// collectComplexity records the structural cyclomatic complexity of
// every function in the document, keyed by declaration position. The
// measure is gocyclo's: one plus the number of branch-contributing
// syntax nodes (if, for, range, case clauses, && and ||) in the body.
// It counts syntax, not control-flow-graph paths, and the same
// definition is applied uniformly across the engine.
func (c *buildContext) collectComplexity(doc scope.Document) {
	stats := gocyclo.AnalyzeASTFile(doc.File, doc.Pkg.Fset, nil)
	for _, s := range stats {
		c.complexity[posKey(s.Pos.Filename, s.Pos.Line)] = s.Complexity
	}
}

// complexityAt returns the recorded complexity for the function
// declared at pos, or zero when the position is unknown.
func (c *buildContext) complexityAt(fset *token.FileSet, pos token.Pos) int {
	p := fset.Position(pos)
	return c.complexity[posKey(p.Filename, p.Line)]
}

func posKey(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}
