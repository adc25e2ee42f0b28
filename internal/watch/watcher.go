// Package watch keeps a stored symbol graph in sync with a module on
// disk. It monitors the tree with fsnotify, batches change events, and
// re-runs extraction once per quiet period. Whole-scope re-extraction
// keeps cross-file edges (interface satisfaction, calls between files)
// correct without incremental bookkeeping.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/ajacobm/symgraph/internal/extract"
	"github.com/ajacobm/symgraph/internal/storage"
)

// debounceInterval is the quiet period after the last change event
// before re-extraction runs.
const debounceInterval = 2 * time.Second

// Watcher re-extracts a path into a storage backend on change.
type Watcher struct {
	engine *extract.Engine
	store  storage.Backend
	opts   extract.Options
	scope  string
	log    *slog.Logger
}

// New creates a watcher that re-extracts with the given scope keyword
// and options. A nil logger falls back to the default.
func New(engine *extract.Engine, store storage.Backend, scopeName string, opts extract.Options, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{engine: engine, store: store, opts: opts, scope: scopeName, log: log}
}

// Run performs one initial extraction and then blocks, re-extracting
// after each batch of relevant filesystem changes, until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context, rootPath string) error {
	if err := w.reextract(ctx, rootPath); err != nil {
		return err
	}

	matcher := loadIgnoreMatcher(rootPath)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skipDir(info.Name(), path, rootPath, matcher) {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("registering watch paths: %w", err)
	}

	w.log.Info("watching for changes", "path", rootPath, "scope", w.scope)

	pending := 0
	debounce := time.NewTimer(debounceInterval)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event.Name, rootPath, matcher) {
				continue
			}
			// New directories must be registered before events inside
			// them can arrive.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !skipDir(info.Name(), event.Name, rootPath, matcher) {
						_ = fw.Add(event.Name)
					}
					continue
				}
			}
			pending++
			debounce.Reset(debounceInterval)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-debounce.C:
			if pending == 0 {
				continue
			}
			w.log.Info("changes detected", "events", pending)
			pending = 0
			if err := w.reextract(ctx, rootPath); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Error("re-extraction failed", "error", err)
			}
		}
	}
}

// reextract rebuilds the graph and replaces the store contents.
func (w *Watcher) reextract(ctx context.Context, rootPath string) error {
	start := time.Now()
	g, warnings, err := w.engine.Extract(ctx, rootPath, w.scope, w.opts)
	if err != nil {
		return err
	}
	if err := w.store.BulkLoad(ctx, g); err != nil {
		return fmt.Errorf("storing graph: %w", err)
	}
	w.log.Info("graph refreshed",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"warnings", len(warnings),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// relevant reports whether a changed path affects the symbol graph:
// Go sources plus the module and workspace definition files.
func relevant(path, rootPath string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(rootPath, path)
	if err != nil {
		return false
	}
	if matcher != nil {
		parts := strings.Split(relPath, string(filepath.Separator))
		if matcher.Match(parts, false) {
			return false
		}
	}
	base := filepath.Base(path)
	if base == "go.mod" || base == "go.work" {
		return true
	}
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

// skipDir reports whether a directory is excluded from watching.
func skipDir(name, path, rootPath string, matcher gitignore.Matcher) bool {
	switch name {
	case ".git", "vendor", "node_modules", ".symgraph", "testdata":
		return true
	}
	if matcher != nil {
		relPath, err := filepath.Rel(rootPath, path)
		if err == nil && relPath != "." {
			parts := strings.Split(relPath, string(filepath.Separator))
			return matcher.Match(parts, true)
		}
	}
	return false
}

// loadIgnoreMatcher parses the root .gitignore, if present. A missing
// or unreadable file means no patterns.
func loadIgnoreMatcher(rootPath string) gitignore.Matcher {
	content, err := os.ReadFile(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
