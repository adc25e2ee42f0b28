// Package cmd provides the symgraph CLI.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/ajacobm/symgraph/internal/export"
	"github.com/ajacobm/symgraph/internal/extract"
	"github.com/ajacobm/symgraph/internal/graph"
	"github.com/ajacobm/symgraph/internal/storage"
	"github.com/ajacobm/symgraph/internal/watch"
	"github.com/ajacobm/symgraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// storeDirName is the per-repository data directory.
const storeDirName = ".symgraph"

// ExtractCmd builds the symbol graph for a path and stores it.
type ExtractCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"File, module directory, or go.work path"`
	Scope string `default:"project" enum:"file,project,solution" help:"Extraction scope (file|project|solution)"`

	NoInheritance bool `help:"Skip embedding and interface-satisfaction edges"`
	NoCalls       bool `help:"Skip invocation edges"`
	NoFieldAccess bool `help:"Skip field read/write edges"`
	NoNamespaces  bool `help:"Skip package nodes and containment edges"`
	NoComposition bool `help:"Skip field, parameter, and return type edges"`
	MaxDepth      int  `default:"3" help:"Depth bound for traversal queries"`

	JSON string `short:"j" help:"Also write the graph document as JSON to this file ('-' for stdout)"`
}

func (c *ExtractCmd) options() extract.Options {
	return extract.Options{
		IncludeInheritance: !c.NoInheritance,
		IncludeMethodCalls: !c.NoCalls,
		IncludeFieldAccess: !c.NoFieldAccess,
		IncludeNamespaces:  !c.NoNamespaces,
		IncludeComposition: !c.NoComposition,
		MaxDepth:           c.MaxDepth,
	}
}

// Run executes the extract command.
func (c *ExtractCmd) Run() error {
	ctx := context.Background()
	start := time.Now()

	engine := extract.NewEngine(slog.Default())
	g, warnings, err := engine.Extract(ctx, c.Path, c.Scope, c.options())
	if err != nil {
		return err
	}

	rootPath := "."
	if g.Metadata != nil {
		rootPath = g.Metadata.RootPath
	}

	dataDir := filepath.Join(rootPath, storeDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(filepath.Join(dataDir, "badger"), false); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.BulkLoad(ctx, g); err != nil {
		return fmt.Errorf("storing graph: %w", err)
	}
	if err := writeMeta(dataDir, g, warnings); err != nil {
		return err
	}

	if c.JSON != "" {
		doc := export.BuildDocument(g, warnings, false)
		data, err := doc.MarshalIndent()
		if err != nil {
			return err
		}
		if c.JSON == "-" {
			fmt.Println(string(data))
		} else if err := os.WriteFile(c.JSON, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", c.JSON, err)
		}
	}

	color.Green("\n✓ Extraction complete")
	fmt.Printf("  Scope:     %s\n", c.Scope)
	fmt.Printf("  Files:     %d\n", len(g.Metadata.ProcessedFiles))
	fmt.Printf("  Nodes:     %d\n", g.NodeCount())
	fmt.Printf("  Edges:     %d\n", g.EdgeCount())
	fmt.Printf("  Duration:  %.2fs\n", time.Since(start).Seconds())
	if len(warnings) > 0 {
		color.Yellow("  Warnings:  %d", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
	return nil
}

// storedMeta is the shape of meta.json written next to the store.
type storedMeta struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Scope       string `json:"scope"`
	Module      string `json:"module,omitempty"`
	GeneratedAt string `json:"generated_at"`
	Stats       struct {
		Files    int `json:"files"`
		Nodes    int `json:"nodes"`
		Edges    int `json:"edges"`
		Warnings int `json:"warnings"`
	} `json:"stats"`
}

func writeMeta(dataDir string, g *graph.SymbolGraph, warnings []string) error {
	meta := storedMeta{
		Version:     Version,
		Name:        filepath.Base(g.Metadata.RootPath),
		Path:        g.Metadata.RootPath,
		Scope:       g.Metadata.Scope,
		Module:      g.Metadata.ModulePath,
		GeneratedAt: g.Metadata.GeneratedAt.Format(time.RFC3339),
	}
	meta.Stats.Files = len(g.Metadata.ProcessedFiles)
	meta.Stats.Nodes = g.NodeCount()
	meta.Stats.Edges = g.EdgeCount()
	meta.Stats.Warnings = len(warnings)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "meta.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

// StatsCmd summarizes the stored graph.
type StatsCmd struct{}

// Run executes the stats command.
func (c *StatsCmd) Run() error {
	ctx := context.Background()
	store, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Metadata(ctx)
	if err != nil {
		return err
	}
	if meta == nil {
		fmt.Println("Store is empty. Run 'symgraph extract' first.")
		return nil
	}

	fmt.Printf("Symbol graph for %s\n", meta.RootPath)
	if meta.ModulePath != "" {
		fmt.Printf("  Module:     %s\n", meta.ModulePath)
	}
	fmt.Printf("  Scope:      %s\n", meta.Scope)
	fmt.Printf("  Generated:  %s\n", meta.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("  Files:      %d\n", len(meta.ProcessedFiles))
	fmt.Printf("  Nodes:      %d\n", store.NodeCount())
	fmt.Printf("  Edges:      %d\n", store.EdgeCount())

	fmt.Println("\nNodes by kind:")
	for kind, n := range meta.NodeKindCounts {
		fmt.Printf("  %-12s %d\n", kind, n)
	}
	fmt.Println("\nEdges by type:")
	for t, n := range meta.EdgeTypeCounts {
		fmt.Printf("  %-14s %d\n", t, n)
	}
	return nil
}

// ContextCmd shows the relationships of a symbol.
type ContextCmd struct {
	Symbol string `arg:"" help:"Short name of the symbol to inspect"`
	Depth  int    `short:"d" default:"3" help:"Transitive caller traversal depth"`
}

// Run executes the context command.
func (c *ContextCmd) Run() error {
	ctx := context.Background()
	store, err := loadStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	matches, err := store.FindByName(ctx, c.Symbol)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("Symbol '%s' not found. Run 'symgraph extract' first, or check the spelling.\n", c.Symbol)
		return nil
	}

	for _, node := range matches {
		fmt.Printf("## %s (%s)\n\n", node.FullName, node.Kind)
		if node.Location != nil {
			fmt.Printf("Declared at %s:%d\n", node.Location.File, node.Location.Line)
		}
		fmt.Printf("References: %d incoming, %d outgoing\n\n",
			node.Metrics.IncomingRefs, node.Metrics.OutgoingRefs)

		printRelated(ctx, store, node.ID, "Callers", storage.DirIncoming, graph.EdgeInvokes)
		printRelated(ctx, store, node.ID, "Callees", storage.DirOutgoing, graph.EdgeInvokes)
		printRelated(ctx, store, node.ID, "Implemented by", storage.DirIncoming, graph.EdgeImplements)
		printRelated(ctx, store, node.ID, "Implements", storage.DirOutgoing, graph.EdgeImplements)
		printRelated(ctx, store, node.ID, "Embeds", storage.DirOutgoing, graph.EdgeInherits)

		if c.Depth > 1 {
			transitive, err := store.Traverse(ctx, node.ID, c.Depth, storage.DirIncoming, graph.EdgeInvokes)
			if err == nil && len(transitive) > 0 {
				fmt.Printf("### Transitive callers within depth %d (%d)\n", c.Depth, len(transitive))
				for _, n := range transitive {
					fmt.Printf("- %s (%s)\n", n.FullName, n.Kind)
				}
				fmt.Println()
			}
		}
	}
	return nil
}

func printRelated(ctx context.Context, store storage.Backend, id, heading string, dir storage.Direction, edgeType graph.EdgeType) {
	related, err := store.Related(ctx, id, dir, edgeType)
	if err != nil || len(related) == 0 {
		return
	}
	fmt.Printf("### %s (%d)\n", heading, len(related))
	for _, r := range related {
		line := fmt.Sprintf("- %s (%s)", r.Node.FullName, r.Node.Kind)
		if r.Edge.Location != nil {
			line += fmt.Sprintf(" at %s:%d", r.Edge.Location.File, r.Edge.Location.Line)
		}
		fmt.Println(line)
	}
	fmt.Println()
}

// CypherCmd renders a graph as a Cypher bulk-import script.
type CypherCmd struct {
	Path   string `arg:"" optional:"" default:"." help:"File, module directory, or go.work path"`
	Scope  string `default:"project" enum:"file,project,solution" help:"Extraction scope (file|project|solution)"`
	Output string `short:"o" help:"Write the script to this file instead of stdout"`
}

// Run executes the cypher command.
func (c *CypherCmd) Run() error {
	ctx := context.Background()

	engine := extract.NewEngine(slog.Default())
	g, _, err := engine.Extract(ctx, c.Path, c.Scope, extract.DefaultOptions())
	if err != nil {
		return err
	}

	script := export.Cypher(g)
	if c.Output == "" {
		fmt.Print(script)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(script), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.Output, err)
	}
	color.Green("✓ Wrote %s (%d nodes, %d edges)", c.Output, g.NodeCount(), g.EdgeCount())
	return nil
}

// WatchCmd re-extracts the graph on file changes.
type WatchCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Module directory to watch"`
	Scope string `default:"project" enum:"project,solution" help:"Extraction scope (project|solution)"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	rootPath, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	dataDir := filepath.Join(rootPath, storeDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(filepath.Join(dataDir, "badger"), false); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	engine := extract.NewEngine(slog.Default())
	w := watch.New(engine, store, c.Scope, extract.DefaultOptions(), slog.Default())
	if err := w.Run(ctx, rootPath); err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}
	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server on stdio.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	store, err := openStorage(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine := extract.NewEngine(slog.Default())
	server := mcp.NewServer(engine, store)

	// No stderr chatter: stdio carries JSON-RPC only.
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server, optionally with live re-extraction.
type ServeCmd struct {
	Watch bool `short:"w" help:"Re-extract on file changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()
	store, err := openStorage(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine := extract.NewEngine(slog.Default())
	server := mcp.NewServer(engine, store)

	if c.Watch {
		rootPath, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			w := watch.New(engine, store, "project", extract.DefaultOptions(), slog.Default())
			if err := w.Run(watchCtx, rootPath); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
		fmt.Fprintln(os.Stderr, "File watching enabled")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows the state of the stored index.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	repoPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	metaPath := filepath.Join(repoPath, storeDirName, "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no graph found at %s. Run 'symgraph extract' first", repoPath)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	var meta storedMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing meta.json: %w", err)
	}

	fmt.Printf("Graph status for %s\n", repoPath)
	fmt.Printf("  Version:    %s\n", meta.Version)
	fmt.Printf("  Scope:      %s\n", meta.Scope)
	if meta.Module != "" {
		fmt.Printf("  Module:     %s\n", meta.Module)
	}
	fmt.Printf("  Generated:  %s\n", meta.GeneratedAt)
	fmt.Printf("  Files:      %d\n", meta.Stats.Files)
	fmt.Printf("  Nodes:      %d\n", meta.Stats.Nodes)
	fmt.Printf("  Edges:      %d\n", meta.Stats.Edges)
	if meta.Stats.Warnings > 0 {
		fmt.Printf("  Warnings:   %d\n", meta.Stats.Warnings)
	}
	return nil
}

// CleanCmd deletes the stored graph for the current repository.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	repoPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	dataDir := filepath.Join(repoPath, storeDirName)
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return fmt.Errorf("no graph found at %s. Nothing to clean", repoPath)
	}

	if !c.Force {
		fmt.Printf("Delete graph at %s? [y/N] ", dataDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("deleting graph: %w", err)
	}
	color.Green("Deleted %s", dataDir)
	return nil
}

// Helpers

func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// loadStorage opens the current repository's store read-only. The store
// must already exist.
func loadStorage() (*storage.BadgerBackend, error) {
	return openStorage(true)
}

// openStorage opens the current repository's store, creating it when
// opened for writing.
func openStorage(readOnly bool) (*storage.BadgerBackend, error) {
	repoPath, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	dbPath := filepath.Join(repoPath, storeDirName, "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if readOnly {
			return nil, fmt.Errorf("no graph found at %s. Run 'symgraph extract' first", repoPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	Extract ExtractCmd `cmd:"" help:"Build the symbol graph for a path and store it"`
	Stats   StatsCmd   `cmd:"" help:"Summarize the stored graph"`
	Context ContextCmd `cmd:"" help:"Show the relationships of a symbol"`
	Cypher  CypherCmd  `cmd:"" help:"Render a graph as a Cypher bulk-import script"`
	Watch   WatchCmd   `cmd:"" help:"Re-extract the graph on file changes"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server with optional watch mode"`
	Status  StatusCmd  `cmd:"" help:"Show stored graph status for current repo"`
	Clean   CleanCmd   `cmd:"" help:"Delete the stored graph for current repo"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// parser builds the Kong parser for this CLI instance.
func (c *CLI) parser() (*kong.Kong, error) {
	return kong.New(c,
		kong.Name("symgraph"),
		kong.Description("Symbol relationship graph engine for Go codebases"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
}

// Execute parses command-line arguments and runs the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := c.parser()
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return err
	}

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	if c.Quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return kongCtx.Run()
}
