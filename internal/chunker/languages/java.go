package languages

import (
	"repodex/internal/chunker"

	"github.com/smacker/go-tree-sitter/java"
)

func RegisterJava(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "java",
		Language: java.GetLanguage(),
		Query: `
			(class_declaration name: (identifier) @name) @chunk
			(interface_declaration name: (identifier) @name) @chunk
			(enum_declaration name: (identifier) @name) @chunk
			(method_declaration name: (identifier) @name) @chunk
			(constructor_declaration name: (identifier) @name) @chunk
		`,
		Extensions: []string{"java"},
		Kinds: map[string]string{
			"class_declaration":       "class",
			"interface_declaration":   "interface",
			"enum_declaration":        "enum",
			"method_declaration":      "method",
			"constructor_declaration": "constructor",
		},
		ImportPrefixes: []string{"import "},
	})
}
