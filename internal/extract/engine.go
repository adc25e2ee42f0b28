// Package extract turns Go source into a typed symbol graph. It runs
// in two passes over a resolved document set: a declaration pass that
// creates nodes, containment, composition, and inheritance edges, and
// an expression pass that adds invocation and member-access edges.
// Interface satisfaction is computed once at the end over every type
// declared in scope.
package extract

import (
	"context"
	"log/slog"

	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
)

// Engine is the top-level extraction entry point shared by the CLI and
// the MCP server: it resolves the scope and builds the graph in one
// call.
type Engine struct {
	resolver *scope.Resolver
	log      *slog.Logger
}

// NewEngine creates an engine. A nil logger falls back to the default.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{resolver: &scope.Resolver{}, log: log}
}

// Extract resolves path + scope keyword and builds the symbol graph.
// Scope keyword validation and path resolution failures abort the call;
// per-document failures degrade to warnings on the returned graph.
func (e *Engine) Extract(ctx context.Context, path, scopeName string, opts Options) (*graph.SymbolGraph, []string, error) {
	sc, err := scope.ParseScope(scopeName)
	if err != nil {
		return nil, nil, err
	}

	res, err := e.resolver.Resolve(ctx, path, sc)
	if err != nil {
		return nil, nil, err
	}

	e.log.Info("scope resolved",
		"scope", string(sc),
		"root", res.RootPath,
		"documents", len(res.Documents))

	g, warnings, err := NewBuilder(opts, e.log).Build(res)
	if err != nil {
		return nil, warnings, err
	}

	e.log.Info("graph built",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"warnings", len(warnings))
	return g, warnings, nil
}
