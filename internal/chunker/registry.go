package chunker

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrNoGrammar is returned by Resolve when no grammar is registered for a
// language. Callers treat it exactly like a parse failure and route the
// file to line-based fallback chunking.
var ErrNoGrammar = errors.New("no grammar registered")

// LangUnknown is the language tag assigned to files whose extension maps
// to no registered grammar. It always resolves to ErrNoGrammar.
const LangUnknown = "unknown"

// Grammar bundles everything the engine needs to chunk one language: the
// tree-sitter grammar, a boundary query, and per-language metadata. All
// language-specific knowledge lives here — the extractor and assembler
// never branch on language tags.
type Grammar struct {
	// Name is the language tag, e.g. "go" or "python".
	Name     string
	Language *sitter.Language
	// Query is a tree-sitter S-expression query capturing boundary nodes.
	// It must use @chunk for the boundary node and @name for its
	// identifier (optional).
	Query string
	// Extensions lists file extensions (without dot) handled by this grammar.
	Extensions []string
	// Kinds maps raw tree-sitter node types to canonical node kinds
	// (function, class, method, interface, ...). Unmapped types pass
	// through unchanged.
	Kinds map[string]string
	// ImportPrefixes are line prefixes identifying import statements,
	// e.g. "import " or "using ".
	ImportPrefixes []string
}

// KindFor returns the canonical kind for a raw node type.
func (g *Grammar) KindFor(nodeType string) string {
	if k, ok := g.Kinds[nodeType]; ok {
		return k
	}
	return nodeType
}

// Registry maps language tags and file extensions to grammars. It is
// populated once at startup and safe for concurrent readers afterwards.
type Registry struct {
	mu     sync.RWMutex
	byLang map[string]*Grammar
	byExt  map[string]*Grammar
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byLang: make(map[string]*Grammar),
		byExt:  make(map[string]*Grammar),
	}
}

// Register adds a grammar under its language name and extensions.
func (r *Registry) Register(g *Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLang[g.Name] = g
	for _, ext := range g.Extensions {
		r.byExt[ext] = g
	}
}

// Resolve returns the grammar for a language tag, or ErrNoGrammar.
func (r *Registry) Resolve(lang string) (*Grammar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byLang[lang]
	if !ok {
		return nil, ErrNoGrammar
	}
	return g, nil
}

// Detect returns the language tag for a file path based on its extension,
// or LangUnknown when no grammar claims the extension.
func (r *Registry) Detect(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.byExt[ext]; ok {
		return g.Name
	}
	return LangUnknown
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}
