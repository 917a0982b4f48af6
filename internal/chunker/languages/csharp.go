package languages

import (
	"repodex/internal/chunker"

	"github.com/smacker/go-tree-sitter/csharp"
)

func RegisterCSharp(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "csharp",
		Language: csharp.GetLanguage(),
		Query: `
			(class_declaration name: (identifier) @name) @chunk
			(interface_declaration name: (identifier) @name) @chunk
			(struct_declaration name: (identifier) @name) @chunk
			(method_declaration name: (identifier) @name) @chunk
			(constructor_declaration name: (identifier) @name) @chunk
		`,
		Extensions: []string{"cs"},
		Kinds: map[string]string{
			"class_declaration":       "class",
			"interface_declaration":   "interface",
			"struct_declaration":      "struct",
			"method_declaration":      "method",
			"constructor_declaration": "constructor",
		},
		ImportPrefixes: []string{"using "},
	})
}
