// Package languages registers the built-in tree-sitter grammars with a
// chunker registry. Adding a language means adding one registration file
// here; nothing else in the engine changes.
package languages

import "repodex/internal/chunker"

// RegisterDefaults registers every built-in grammar.
func RegisterDefaults(r *chunker.Registry) {
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterJava(r)
	RegisterCSharp(r)
}
