package languages

import (
	"repodex/internal/chunker"

	"github.com/smacker/go-tree-sitter/javascript"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "javascript",
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (identifier) @name) @chunk
			(method_definition name: (property_identifier) @name) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		Kinds: map[string]string{
			"function_declaration": "function",
			"class_declaration":    "class",
			"method_definition":    "method",
			"lexical_declaration":  "function",
		},
		ImportPrefixes: []string{"import ", "require("},
	})
}
