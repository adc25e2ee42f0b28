// Package mcp provides the Model Context Protocol server for symgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ajacobm/symgraph/internal/export"
	"github.com/ajacobm/symgraph/internal/extract"
	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/scope"
	"github.com/ajacobm/symgraph/internal/storage"
)

// GraphStore is the storage surface the server queries. The persistent
// backend and the in-memory backend both satisfy it.
type GraphStore interface {
	BulkLoad(ctx context.Context, g *graph.SymbolGraph) error
	GetNode(ctx context.Context, id string) (*graph.SymbolNode, error)
	FindByName(ctx context.Context, name string) ([]*graph.SymbolNode, error)
	Related(ctx context.Context, id string, dir storage.Direction, edgeType graph.EdgeType) ([]storage.Related, error)
	Traverse(ctx context.Context, startID string, depth int, dir storage.Direction, edgeType graph.EdgeType) ([]*graph.SymbolNode, error)
	Metadata(ctx context.Context) (*graph.GraphMetadata, error)
	NodeCount() int
	EdgeCount() int
}

// Server bridges the extraction engine and graph store to MCP clients
// over stdio.
type Server struct {
	engine *extract.Engine
	store  GraphStore
	server *mcp.Server
}

// Tool describes one MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes one MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates an MCP server over the given engine and store.
func NewServer(engine *extract.Engine, store GraphStore) *Server {
	s := &Server{
		engine: engine,
		store:  store,
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "symgraph",
		Version: "0.1.0",
	}, nil)
	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "extract_symbol_graph",
			Description: "Extract the symbol relationship graph for a path at file, project, or solution scope. Returns the full graph as JSON and loads it into the query store.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":               {Type: "string", Description: "File, module directory, or go.work path to analyze"},
					"scope":              {Type: "string", Description: "Extraction scope: file, project, or solution (default project)"},
					"includeInheritance": {Type: "boolean", Description: "Include embedding and interface-satisfaction edges (default true)"},
					"includeMethodCalls": {Type: "boolean", Description: "Include invocation edges (default true)"},
					"includeFieldAccess": {Type: "boolean", Description: "Include field read/write edges (default true)"},
					"includeNamespaces":  {Type: "boolean", Description: "Include package nodes and containment edges (default true)"},
					"includeComposition": {Type: "boolean", Description: "Include field, parameter, and return type edges (default true)"},
					"maxDepth":           {Type: "integer", Description: "Depth bound recorded for traversal queries (default 3)"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "symbol_context",
			Description: "Look up a symbol by name and show its relationships: callers, callees, implementations, embeddings, and the transitive call neighborhood.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"symbol": {Type: "string", Description: "Short name of the symbol to look up"},
					"depth":  {Type: "integer", Description: "Transitive traversal depth (default 3)"},
				},
				Required: []string{"symbol"},
			},
		},
		{
			Name:        "graph_stats",
			Description: "Summarize the stored symbol graph: node and edge counts, per-kind and per-type histograms, and extraction metadata.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "export_cypher",
			Description: "Extract a symbol graph and render it as a Cypher bulk-import script for graph databases.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":  {Type: "string", Description: "File, module directory, or go.work path to analyze"},
					"scope": {Type: "string", Description: "Extraction scope: file, project, or solution (default project)"},
				},
				Required: []string{"path"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "symgraph://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the stored symbol graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "symgraph://schema",
			Name:        "Graph Schema",
			Description: "Node kinds and edge types of the symbol graph",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "extract_symbol_graph":
		return s.handleExtract(ctx, args)
	case "symbol_context":
		symbol, _ := args["symbol"].(string)
		depth := intArg(args, "depth", 3)
		return s.handleSymbolContext(ctx, symbol, depth)
	case "graph_stats":
		return s.handleStats(ctx)
	case "export_cypher":
		path, _ := args["path"].(string)
		scopeName, _ := args["scope"].(string)
		return s.handleCypher(ctx, path, scopeName)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "symgraph://overview":
		return s.overview(ctx), nil
	case "symgraph://schema":
		return schemaText(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves JSON-RPC over the given streams until EOF or context
// cancellation.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// No SetIndent: the protocol requires one compact JSON line per
	// message.

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "symgraph",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if schema, err := json.Marshal(tool.InputSchema); err == nil {
			_ = json.Unmarshal(schema, &schemaMap)
		}

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, jsonrpcCode(err), err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// jsonrpcCode maps the extraction failure taxonomy to JSON-RPC error
// codes: invalid arguments are the client's fault, everything else is a
// server-side failure.
func jsonrpcCode(err error) int {
	if errors.Is(err, scope.ErrInvalidScope) {
		return -32602
	}
	return -32000
}

// Tool handlers

func (s *Server) handleExtract(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("%w: path is required", scope.ErrInvalidScope)
	}
	scopeName, _ := args["scope"].(string)
	if scopeName == "" {
		scopeName = string(scope.ScopeProject)
	}
	opts := optionsFromArgs(args)

	g, warnings, err := s.engine.Extract(ctx, path, scopeName, opts)
	if err != nil {
		return "", err
	}
	if s.store != nil {
		if err := s.store.BulkLoad(ctx, g); err != nil {
			warnings = append(warnings, fmt.Sprintf("storing graph: %v", err))
		}
	}

	doc := export.BuildDocument(g, warnings, false)
	data, err := doc.MarshalIndent()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// optionsFromArgs overlays explicit toggles on the defaults; absent
// keys keep their default value rather than flipping to false.
func optionsFromArgs(args map[string]any) extract.Options {
	opts := extract.DefaultOptions()
	if v, ok := args["includeInheritance"].(bool); ok {
		opts.IncludeInheritance = v
	}
	if v, ok := args["includeMethodCalls"].(bool); ok {
		opts.IncludeMethodCalls = v
	}
	if v, ok := args["includeFieldAccess"].(bool); ok {
		opts.IncludeFieldAccess = v
	}
	if v, ok := args["includeNamespaces"].(bool); ok {
		opts.IncludeNamespaces = v
	}
	if v, ok := args["includeComposition"].(bool); ok {
		opts.IncludeComposition = v
	}
	opts.MaxDepth = intArg(args, "maxDepth", opts.MaxDepth)
	return opts
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func (s *Server) handleSymbolContext(ctx context.Context, symbol string, depth int) (string, error) {
	if symbol == "" {
		return "No symbol provided", nil
	}

	matches, err := s.store.FindByName(ctx, symbol)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("Symbol '%s' not found. Run `extract_symbol_graph` first, or check the spelling.", symbol), nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Context for symbol: **%s**\n\n", symbol))
	if len(matches) > 1 {
		sb.WriteString(fmt.Sprintf("%d distinct symbols share this name; showing each.\n\n", len(matches)))
	}

	for _, node := range matches {
		sb.WriteString(fmt.Sprintf("## %s (%s)\n", node.FullName, node.Kind))
		if node.Location != nil {
			sb.WriteString(fmt.Sprintf("Declared at %s:%d\n", node.Location.File, node.Location.Line))
		}
		sb.WriteString(fmt.Sprintf("References: %d incoming, %d outgoing\n\n",
			node.Metrics.IncomingRefs, node.Metrics.OutgoingRefs))

		s.writeRelated(ctx, &sb, node.ID, "Callers", storage.DirIncoming, graph.EdgeInvokes)
		s.writeRelated(ctx, &sb, node.ID, "Callees", storage.DirOutgoing, graph.EdgeInvokes)
		s.writeRelated(ctx, &sb, node.ID, "Implemented by", storage.DirIncoming, graph.EdgeImplements)
		s.writeRelated(ctx, &sb, node.ID, "Implements", storage.DirOutgoing, graph.EdgeImplements)
		s.writeRelated(ctx, &sb, node.ID, "Embeds", storage.DirOutgoing, graph.EdgeInherits)
		s.writeRelated(ctx, &sb, node.ID, "Accessed fields", storage.DirOutgoing, graph.EdgeAccesses)

		if depth > 1 {
			transitive, err := s.store.Traverse(ctx, node.ID, depth, storage.DirIncoming, graph.EdgeInvokes)
			if err == nil && len(transitive) > 0 {
				sb.WriteString(fmt.Sprintf("### Transitive callers within depth %d (%d)\n", depth, len(transitive)))
				for _, n := range transitive {
					sb.WriteString(fmt.Sprintf("- %s (%s)\n", n.FullName, n.Kind))
				}
				sb.WriteString("\n")
			}
		}
	}

	return sb.String(), nil
}

func (s *Server) writeRelated(ctx context.Context, sb *strings.Builder, id, heading string, dir storage.Direction, edgeType graph.EdgeType) {
	related, err := s.store.Related(ctx, id, dir, edgeType)
	if err != nil || len(related) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("### %s (%d)\n", heading, len(related)))
	for _, r := range related {
		line := fmt.Sprintf("- %s (%s)", r.Node.FullName, r.Node.Kind)
		if r.Edge.Location != nil {
			line += fmt.Sprintf(" at %s:%d", r.Edge.Location.File, r.Edge.Location.Line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}

func (s *Server) handleStats(ctx context.Context) (string, error) {
	meta, err := s.store.Metadata(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Symbol Graph Statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", s.store.NodeCount()))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", s.store.EdgeCount()))

	if meta == nil {
		sb.WriteString("\nNo graph stored yet. Run `extract_symbol_graph` first.\n")
		return sb.String(), nil
	}

	sb.WriteString(fmt.Sprintf("**Scope:** %s\n", meta.Scope))
	sb.WriteString(fmt.Sprintf("**Root:** %s\n", meta.RootPath))
	if meta.ModulePath != "" {
		sb.WriteString(fmt.Sprintf("**Module:** %s\n", meta.ModulePath))
	}
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", meta.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("**Files processed:** %d\n", len(meta.ProcessedFiles)))

	sb.WriteString("\n### Nodes by kind\n\n")
	for _, kind := range sortedKeys(meta.NodeKindCounts) {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", kind, meta.NodeKindCounts[kind]))
	}
	sb.WriteString("\n### Edges by type\n\n")
	for _, t := range sortedKeys(meta.EdgeTypeCounts) {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", t, meta.EdgeTypeCounts[t]))
	}
	return sb.String(), nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Server) handleCypher(ctx context.Context, path, scopeName string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is required", scope.ErrInvalidScope)
	}
	if scopeName == "" {
		scopeName = string(scope.ScopeProject)
	}

	g, _, err := s.engine.Extract(ctx, path, scopeName, extract.DefaultOptions())
	if err != nil {
		return "", err
	}
	return export.Cypher(g), nil
}

// Resource handlers

func (s *Server) overview(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("# Symbol Graph Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", s.store.NodeCount()))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", s.store.EdgeCount()))

	if meta, err := s.store.Metadata(ctx); err == nil && meta != nil {
		sb.WriteString(fmt.Sprintf("**Root:** %s\n", meta.RootPath))
		sb.WriteString(fmt.Sprintf("**Scope:** %s\n", meta.Scope))
	}
	return sb.String()
}

func schemaText() string {
	var sb strings.Builder
	sb.WriteString("# Symbol Graph Schema\n\n")
	sb.WriteString("## Node Kinds\n\n")
	sb.WriteString("| Kind | Description |\n")
	sb.WriteString("|------|-------------|\n")
	sb.WriteString("| `package` | Go package |\n")
	sb.WriteString("| `type` | Named type (struct, interface, alias, defined) |\n")
	sb.WriteString("| `func` | Package-level function |\n")
	sb.WriteString("| `method` | Method with a receiver |\n")
	sb.WriteString("| `field` | Struct field |\n")
	sb.WriteString("| `var` | Package-level variable |\n")
	sb.WriteString("| `const` | Package-level constant |\n")
	sb.WriteString("\n## Edge Types\n\n")
	sb.WriteString("| Type | Source -> Target | Meaning |\n")
	sb.WriteString("|------|------------------|--------|\n")
	sb.WriteString("| `inherits` | Type -> Type | Struct or interface embedding |\n")
	sb.WriteString("| `implements` | Type -> Interface | Method set satisfies the interface |\n")
	sb.WriteString("| `composed_of` | Symbol -> Type | Field, parameter, or return type |\n")
	sb.WriteString("| `invokes` | Func/Method -> Func/Method | Resolved call site |\n")
	sb.WriteString("| `accesses` | Func/Method -> Field | Field read or write |\n")
	sb.WriteString("| `contained_in` | Symbol -> Package | Package membership |\n")
	return sb.String()
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
