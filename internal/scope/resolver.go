// Package scope resolves an extraction request (path + scope keyword)
// to the concrete set of documents the graph builder will traverse.
//
// A document is one parsed Go source file paired with the package that
// provides its semantic model. Scope "file" loads only the enclosing
// package and keeps the single named file; "project" loads every
// package of the enclosing module; "solution" loads every module a
// go.work file lists.
package scope

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// Scope is the traversal unit of one extraction call.
type Scope string

const (
	ScopeFile     Scope = "file"
	ScopeProject  Scope = "project"
	ScopeSolution Scope = "solution"
)

// Sentinel errors forming the failure taxonomy. Callers classify with
// errors.Is.
var (
	// ErrInvalidScope reports an unknown scope keyword.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrNotFound reports a missing path, a file absent from its
	// project, or an undiscoverable project/solution file.
	ErrNotFound = errors.New("not found")

	// ErrUnresolvable reports a document with no semantic model.
	ErrUnresolvable = errors.New("unresolvable")
)

// ParseScope validates a scope keyword.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeFile, ScopeProject, ScopeSolution:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want file, project, or solution)", ErrInvalidScope, s)
	}
}

// Document is one source file together with its semantic context.
type Document struct {
	// Path is the absolute path of the source file.
	Path string

	// File is the parsed syntax tree.
	File *ast.File

	// Pkg carries the file set, type information, and package identity.
	Pkg *packages.Package
}

// Resolution is the outcome of scope resolution: an ordered document
// list plus the identity of the resolved root.
type Resolution struct {
	Scope      Scope
	RootPath   string
	ModulePath string
	Documents  []Document

	// Warnings collects non-fatal package load diagnostics.
	Warnings []string
}

// Resolver maps paths and scope keywords to document sets. The zero
// value is ready to use.
type Resolver struct {
	// Dir overrides the working directory passed to the package
	// loader; used by tests.
	Dir string
}

// Resolve maps path + scope to the document set. Resolution failures
// abort the call entirely: no partial result is returned.
func (r *Resolver) Resolve(ctx context.Context, path string, scope Scope) (*Resolution, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, absPath)
	}

	switch scope {
	case ScopeFile:
		return r.resolveFile(ctx, absPath)
	case ScopeProject:
		return r.resolveProject(ctx, absPath)
	case ScopeSolution:
		return r.resolveSolution(ctx, absPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
}

// resolveFile locates the enclosing module of a single source file and
// loads only that file's package, keeping the one named document.
func (r *Resolver) resolveFile(ctx context.Context, absPath string) (*Resolution, error) {
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a source file", ErrNotFound, absPath)
	}

	dir := filepath.Dir(absPath)
	moduleRoot, ok := findUp(dir, "go.mod")
	if !ok {
		return nil, fmt.Errorf("%w: no go.mod above %s", ErrNotFound, absPath)
	}

	res := &Resolution{Scope: ScopeFile, RootPath: moduleRoot, ModulePath: readModulePath(moduleRoot)}
	pkgs, err := r.load(ctx, dir, ".")
	if err != nil {
		return nil, err
	}
	collectLoadWarnings(pkgs, res)

	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		for i, file := range pkg.Syntax {
			if i >= len(pkg.CompiledGoFiles) {
				break
			}
			filePath := pkg.CompiledGoFiles[i]
			if filePath != absPath || seen[filePath] {
				continue
			}
			seen[filePath] = true
			res.Documents = append(res.Documents, Document{Path: filePath, File: file, Pkg: pkg})
		}
	}

	if len(res.Documents) == 0 {
		return nil, fmt.Errorf("%w: %s is not part of its enclosing package", ErrNotFound, absPath)
	}
	return res, nil
}

// resolveProject loads every package of the module enclosing the path.
// The path may be the go.mod file itself, the module directory, or any
// path beneath it.
func (r *Resolver) resolveProject(ctx context.Context, absPath string) (*Resolution, error) {
	dir := absPath
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		dir = filepath.Dir(absPath)
	}

	moduleRoot, ok := findUp(dir, "go.mod")
	if !ok {
		return nil, fmt.Errorf("%w: no go.mod above %s", ErrNotFound, absPath)
	}

	res := &Resolution{Scope: ScopeProject, RootPath: moduleRoot, ModulePath: readModulePath(moduleRoot)}
	pkgs, err := r.load(ctx, moduleRoot, "./...")
	if err != nil {
		return nil, err
	}
	collectLoadWarnings(pkgs, res)
	appendDocuments(pkgs, res, make(map[string]bool))
	return res, nil
}

// resolveSolution locates a go.work file and loads every module it
// lists. A processed-file set guarantees each document is visited at
// most once even when reachable from several modules.
func (r *Resolver) resolveSolution(ctx context.Context, absPath string) (*Resolution, error) {
	workPath := absPath
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		root, ok := findUp(absPath, "go.work")
		if !ok {
			return nil, fmt.Errorf("%w: no go.work above %s", ErrNotFound, absPath)
		}
		workPath = filepath.Join(root, "go.work")
	} else if filepath.Base(workPath) != "go.work" {
		root, ok := findUp(filepath.Dir(absPath), "go.work")
		if !ok {
			return nil, fmt.Errorf("%w: no go.work above %s", ErrNotFound, absPath)
		}
		workPath = filepath.Join(root, "go.work")
	}

	data, err := os.ReadFile(workPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workPath)
	}
	work, err := modfile.ParseWork(workPath, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", workPath, err)
	}

	workRoot := filepath.Dir(workPath)
	res := &Resolution{Scope: ScopeSolution, RootPath: workRoot}
	seen := make(map[string]bool)

	for _, use := range work.Use {
		useDir := use.Path
		if !filepath.IsAbs(useDir) {
			useDir = filepath.Join(workRoot, useDir)
		}
		pkgs, err := r.load(ctx, useDir, "./...")
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("loading %s: %v", useDir, err))
			continue
		}
		collectLoadWarnings(pkgs, res)
		appendDocuments(pkgs, res, seen)
	}
	return res, nil
}

// load runs the package loader with syntax trees and full type
// information, which together form the semantic model the extractors
// consume.
func (r *Resolver) load(ctx context.Context, dir, pattern string) ([]*packages.Package, error) {
	if r.Dir != "" {
		dir = r.Dir
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading packages in %s: %w", dir, err)
	}
	return pkgs, nil
}

func appendDocuments(pkgs []*packages.Package, res *Resolution, seen map[string]bool) {
	for _, pkg := range pkgs {
		for i, file := range pkg.Syntax {
			if i >= len(pkg.CompiledGoFiles) {
				break
			}
			filePath := pkg.CompiledGoFiles[i]
			if seen[filePath] {
				continue
			}
			seen[filePath] = true
			res.Documents = append(res.Documents, Document{Path: filePath, File: file, Pkg: pkg})
		}
	}
}

func collectLoadWarnings(pkgs []*packages.Package, res *Resolution) {
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			res.Warnings = append(res.Warnings, fmt.Sprintf("package %s: %v", pkg.PkgPath, e))
		}
	}
}

// findUp walks parent directories from start until a directory
// containing name is found.
func findUp(start, name string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func readModulePath(moduleRoot string) string {
	data, err := os.ReadFile(filepath.Join(moduleRoot, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}
