package chunker

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Span is a candidate chunk region produced by the extractor, before any
// merge/split adjustment. Nested boundary nodes (a method inside a class)
// are recorded as Children of the enclosing span; the top-level sequence
// returned by extract is non-overlapping.
type Span struct {
	Kind      string
	Name      string
	StartByte uint32
	EndByte   uint32
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Parents   []string
	Imports   []string
	Children  []*Span
}

// label is the name used when this span appears in a child's parent chain.
func (s *Span) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// extract runs the grammar's boundary query against a parsed tree and
// returns the top-level candidate spans ordered by start offset. Trees
// with localized parse errors are still walked; captures from the intact
// regions survive. A tree with no boundary nodes yields an empty slice.
func extract(tree *sitter.Tree, g *Grammar, src []byte) ([]*Span, error) {
	q, err := sitter.NewQuery([]byte(g.Query), g.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", g.Name, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var spans []*Span
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var node *sitter.Node
		var name string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				node = cap.Node
			case "name":
				name = cap.Node.Content(src)
			}
		}
		if node == nil {
			continue
		}
		spans = append(spans, &Span{
			Kind:      g.KindFor(node.Type()),
			Name:      name,
			StartByte: node.StartByte(),
			EndByte:   node.EndByte(),
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
	}
	if len(spans) == 0 {
		return nil, nil
	}

	// Order by start offset, larger node first on ties, so containment
	// can be resolved with a single stack pass.
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].StartByte != spans[j].StartByte {
			return spans[i].StartByte < spans[j].StartByte
		}
		return (spans[i].EndByte - spans[i].StartByte) > (spans[j].EndByte - spans[j].StartByte)
	})

	imports := scanImports(src, g.ImportPrefixes)
	roots := buildSpanTree(spans, imports)
	return roots, nil
}

// buildSpanTree nests contained spans under their enclosing span and
// fills in parent chains. Duplicate captures of the same range collapse
// into one span.
func buildSpanTree(spans []*Span, imports []string) []*Span {
	var roots []*Span
	var stack []*Span
	for _, s := range spans {
		for len(stack) > 0 && s.StartByte >= stack[len(stack)-1].EndByte {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			p := stack[len(stack)-1]
			if s.StartByte == p.StartByte && s.EndByte == p.EndByte {
				continue // duplicate capture of the same node
			}
			s.Parents = append(append([]string(nil), p.Parents...), p.label())
			if s.Kind == "function" && containerKind(p.Kind) {
				s.Kind = "method"
			}
			p.Children = append(p.Children, s)
		} else {
			roots = append(roots, s)
		}
		s.Imports = imports
		stack = append(stack, s)
	}
	return roots
}

// containerKind reports whether a span kind encloses methods.
func containerKind(kind string) bool {
	switch kind {
	case "class", "interface", "struct", "module":
		return true
	}
	return false
}

// scanImports collects import statements by line prefix. File-level
// imports are attached to every span so each chunk records the imports
// visible at its scope.
func scanImports(src []byte, prefixes []string) []string {
	if len(prefixes) == 0 {
		return nil
	}
	var imports []string
	for _, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) {
				imports = append(imports, trimmed)
				break
			}
		}
	}
	return imports
}
