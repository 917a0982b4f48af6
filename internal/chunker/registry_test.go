package chunker

import (
	"testing"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Grammar{
		Name:       "go",
		Language:   golang.GetLanguage(),
		Query:      `(function_declaration name: (identifier) @name) @chunk`,
		Extensions: []string{"go"},
		Kinds: map[string]string{
			"function_declaration": "function",
		},
		ImportPrefixes: []string{"import "},
	})
	return r
}

func TestResolveRegistered(t *testing.T) {
	r := testRegistry()
	g, err := r.Resolve("go")
	require.NoError(t, err)
	assert.Equal(t, "go", g.Name)
}

func TestResolveUnknownIsNotFound(t *testing.T) {
	r := testRegistry()
	_, err := r.Resolve("fortran")
	assert.ErrorIs(t, err, ErrNoGrammar)

	// The sentinel unknown language never resolves.
	_, err = r.Resolve(LangUnknown)
	assert.ErrorIs(t, err, ErrNoGrammar)
}

func TestDetect(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, "go", r.Detect("internal/server/handler.go"))
	assert.Equal(t, "go", r.Detect("WEIRD/CASE.GO"))
	assert.Equal(t, LangUnknown, r.Detect("README.md"))
	assert.Equal(t, LangUnknown, r.Detect("Makefile"))
}

func TestKindFor(t *testing.T) {
	r := testRegistry()
	g, err := r.Resolve("go")
	require.NoError(t, err)
	assert.Equal(t, "function", g.KindFor("function_declaration"))
	assert.Equal(t, "weird_node", g.KindFor("weird_node"))
}

func TestExtensions(t *testing.T) {
	r := testRegistry()
	exts := r.Extensions()
	assert.True(t, exts["go"])
	assert.False(t, exts["py"])
}
