package languages

import (
	"repodex/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func RegisterTypeScript(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "typescript",
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (type_identifier) @name) @chunk
			(method_definition name: (property_identifier) @name) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
			(interface_declaration name: (type_identifier) @name) @chunk
			(type_alias_declaration name: (type_identifier) @name) @chunk
		`,
		Extensions: []string{"ts", "tsx"},
		Kinds: map[string]string{
			"function_declaration":   "function",
			"class_declaration":      "class",
			"method_definition":      "method",
			"lexical_declaration":    "function",
			"interface_declaration":  "interface",
			"type_alias_declaration": "type",
		},
		ImportPrefixes: []string{"import ", "require("},
	})
}
