package scope

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree writes a file tree under a fresh temp dir and returns its
// root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Scope
		wantErr bool
	}{
		{"file", "file", ScopeFile, false},
		{"project", "project", ScopeProject, false},
		{"solution", "solution", ScopeSolution, false},
		{"empty", "", "", true},
		{"unknown", "workspace", "", true},
		{"case sensitive", "Project", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseScope(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMissingPath(t *testing.T) {
	t.Parallel()

	r := &Resolver{}
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope.go"), ScopeFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveUnknownScope(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.mod":  "module example.com/fixture\n\ngo 1.23\n",
		"main.go": "package main\n\nfunc main() {}\n",
	})

	r := &Resolver{}
	_, err := r.Resolve(context.Background(), root, Scope("bogus"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestResolveFileScope(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.mod":   "module example.com/fixture\n\ngo 1.23\n",
		"main.go":  "package main\n\nfunc main() { helper() }\n",
		"other.go": "package main\n\nfunc helper() {}\n",
	})

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), filepath.Join(root, "main.go"), ScopeFile)
	require.NoError(t, err)

	require.Len(t, res.Documents, 1)
	assert.Equal(t, "main.go", filepath.Base(res.Documents[0].Path))
	assert.Equal(t, ScopeFile, res.Scope)
	assert.Equal(t, "example.com/fixture", res.ModulePath)
	assert.NotNil(t, res.Documents[0].Pkg.TypesInfo)
}

func TestResolveFileScopeNonSourceFile(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.mod":    "module example.com/fixture\n\ngo 1.23\n",
		"main.go":   "package main\n\nfunc main() {}\n",
		"README.md": "fixture\n",
	})

	r := &Resolver{}
	_, err := r.Resolve(context.Background(), filepath.Join(root, "README.md"), ScopeFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveProjectScope(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.mod":         "module example.com/fixture\n\ngo 1.23\n",
		"main.go":        "package main\n\nfunc main() {}\n",
		"util/util.go":   "package util\n\nfunc Double(n int) int { return n * 2 }\n",
		"util/extra.go":  "package util\n\nfunc Triple(n int) int { return n * 3 }\n",
		"util/notes.txt": "ignored\n",
	})

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), filepath.Join(root, "util"), ScopeProject)
	require.NoError(t, err)

	// Project scope resolves the whole module, not just the named dir.
	names := make(map[string]bool)
	for _, doc := range res.Documents {
		names[filepath.Base(doc.Path)] = true
	}
	assert.True(t, names["main.go"])
	assert.True(t, names["util.go"])
	assert.True(t, names["extra.go"])
	assert.False(t, names["notes.txt"])
	assert.Equal(t, "example.com/fixture", res.ModulePath)
}

func TestResolveProjectScopeNoModule(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"main.go": "package main\n\nfunc main() {}\n",
	})

	r := &Resolver{}
	_, err := r.Resolve(context.Background(), root, ScopeProject)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSolutionScope(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.work":      "go 1.23\n\nuse (\n\t./alpha\n\t./beta\n)\n",
		"alpha/go.mod": "module example.com/alpha\n\ngo 1.23\n",
		"alpha/a.go":   "package alpha\n\nfunc A() {}\n",
		"beta/go.mod":  "module example.com/beta\n\ngo 1.23\n",
		"beta/b.go":    "package beta\n\nfunc B() {}\n",
	})

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), root, ScopeSolution)
	require.NoError(t, err)

	assert.Equal(t, root, res.RootPath)
	names := make(map[string]bool)
	for _, doc := range res.Documents {
		names[filepath.Base(doc.Path)] = true
	}
	assert.True(t, names["a.go"])
	assert.True(t, names["b.go"])
}

func TestResolveSolutionScopeNoWorkFile(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"go.mod":  "module example.com/fixture\n\ngo 1.23\n",
		"main.go": "package main\n\nfunc main() {}\n",
	})

	r := &Resolver{}
	_, err := r.Resolve(context.Background(), root, ScopeSolution)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSolutionDeduplicatesDocuments(t *testing.T) {
	t.Parallel()

	// The same module listed twice must not produce duplicate documents.
	root := writeTree(t, map[string]string{
		"go.work":      "go 1.23\n\nuse (\n\t./alpha\n\t./alpha\n)\n",
		"alpha/go.mod": "module example.com/alpha\n\ngo 1.23\n",
		"alpha/a.go":   "package alpha\n\nfunc A() {}\n",
	})

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), root, ScopeSolution)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, doc := range res.Documents {
		seen[doc.Path]++
	}
	for path, n := range seen {
		assert.Equal(t, 1, n, "document %s resolved more than once", path)
	}
}
