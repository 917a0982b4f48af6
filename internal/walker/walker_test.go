package walker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, root string, exts map[string]bool) ([]FileInfo, Result) {
	t.Helper()
	files, results := Walk(root, exts)
	var got []FileInfo
	for f := range files {
		got = append(got, f)
	}
	return got, <-results
}

func relPaths(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestWalkFindsSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "lib/util.py", "def f(): pass\n")
	writeFile(t, root, "README.md", "# readme\n")

	got, res := collect(t, root, map[string]bool{"go": true, "py": true})
	require.NoError(t, res.Err)

	paths := relPaths(got)
	assert.ElementsMatch(t, []string{"main.go", "lib/util.py"}, paths)
	assert.Equal(t, 2, res.Folders) // root + lib
}

func TestWalkNilExtensionsEmitsEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "notes.txt", "hello\n")
	writeFile(t, root, "Makefile", "all:\n")

	got, res := collect(t, root, nil)
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []string{"a.go", "notes.txt", "Makefile"}, relPaths(got))
}

func TestWalkEmitsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.go", "")

	got, res := collect(t, root, map[string]bool{"go": true})
	require.NoError(t, res.Err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].Size)
}

func TestWalkSkipsDefaultIgnoreDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package keep\n")
	writeFile(t, root, ".git/objects/blob.go", "package blob\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = 1\n")
	writeFile(t, root, "vendor/lib/lib.go", "package lib\n")

	got, res := collect(t, root, nil)
	require.NoError(t, res.Err)

	paths := relPaths(got)
	assert.Contains(t, paths, "keep.go")
	for _, p := range paths {
		assert.False(t, strings.HasPrefix(p, ".git/"), "should skip .git: %s", p)
		assert.False(t, strings.HasPrefix(p, "node_modules/"), "should skip node_modules: %s", p)
		assert.False(t, strings.HasPrefix(p, "vendor/"), "should skip vendor: %s", p)
	}
}

func TestWalkCreatesIgnoreFileWithDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	_, res := collect(t, root, nil)
	require.NoError(t, res.Err)

	data, err := os.ReadFile(filepath.Join(root, ".repodexignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "node_modules")
}

func TestWalkHonorsCustomIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".repodexignore", "generated\n*.pb.go\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "api.pb.go", "package api\n")
	writeFile(t, root, "generated/gen.go", "package gen\n")
	// Defaults are replaced, so node_modules is walked now.
	writeFile(t, root, "node_modules/x.js", "1\n")

	got, res := collect(t, root, nil)
	require.NoError(t, res.Err)

	paths := relPaths(got)
	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "node_modules/x.js")
	assert.NotContains(t, paths, "api.pb.go")
	assert.NotContains(t, paths, "generated/gen.go")
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", strings.Repeat("x", maxFileSize+1))
	writeFile(t, root, "small.go", "package small\n")

	got, res := collect(t, root, map[string]bool{"go": true})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"small.go"}, relPaths(got))
}

func TestWalkSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.go", "package real\n")
	require.NoError(t, os.Symlink(filepath.Join(root, "real.go"), filepath.Join(root, "link.go")))

	got, res := collect(t, root, map[string]bool{"go": true})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"real.go"}, relPaths(got))
}
