package chunker

import (
	"sort"
	"strings"
)

// NestedPolicy selects how spans that contain nested boundary nodes are
// emitted.
type NestedPolicy string

const (
	// NestedOuter keeps the enclosing span as one chunk unless it exceeds
	// the token budget, in which case it splits along its children.
	NestedOuter NestedPolicy = "outer"
	// NestedInner always emits nested boundary nodes as separate chunks,
	// with the container's surrounding regions emitted around them.
	NestedInner NestedPolicy = "inner"
)

// Config carries the token budgets for the chunking engine. MinTokens is
// advisory: the final chunk of a file may fall below it.
type Config struct {
	MaxTokens     int
	MinTokens     int
	OverlapTokens int
	Nested        NestedPolicy
}

// DefaultConfig mirrors the defaults of the chunk CLI.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     25000,
		MinTokens:     50,
		OverlapTokens: 500,
		Nested:        NestedOuter,
	}
}

// piece is an assembled chunk region before record building. startLine
// and endLine cover the piece's own content; overlap lines borrowed from
// the preceding piece are tracked separately.
type piece struct {
	kind    string
	name    string
	parents []string
	imports []string

	startLine int // 1-based, inclusive
	endLine   int // 1-based, inclusive
	overlap   int // leading lines repeated from the previous piece

	fallback bool
}

// assemble turns ordered candidate spans into chunk pieces: oversized
// spans are split along child boundaries or line windows, undersized
// spans are merged with eligible neighbors, everything else passes
// through whole. It never fails; at worst an out-of-bound piece is
// emitted as is.
func assemble(spans []*Span, lines []string, cfg Config, est *Estimator) []piece {
	// The extractor already orders spans; re-assert the invariant since
	// correctness of merging depends on it.
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartLine < spans[j].StartLine })

	if cfg.Nested == NestedInner {
		var expanded []*Span
		for _, s := range spans {
			expanded = append(expanded, expandInner(s)...)
		}
		spans = expanded
	}

	var out []piece
	var buf *mergeBuffer

	flush := func() {
		if buf != nil {
			out = append(out, buf.piece())
			buf = nil
		}
	}

	for _, s := range spans {
		tokens := est.Estimate(joinLines(lines, s.StartLine, s.EndLine))

		if buf != nil && !buf.accepts(s) {
			flush()
		}

		switch {
		case tokens > cfg.MaxTokens:
			flush()
			out = append(out, splitSpan(s, lines, cfg, est)...)

		case buf != nil:
			// A pending undersized buffer absorbs the next span when the
			// combined range stays within budget; otherwise it is flushed
			// below MinTokens rather than blocking.
			merged := est.Estimate(joinLines(lines, buf.startLine, s.EndLine))
			if merged <= cfg.MaxTokens {
				buf.extend(s)
				if merged >= cfg.MinTokens {
					flush()
				}
			} else {
				flush()
				if tokens < cfg.MinTokens {
					buf = newMergeBuffer(s)
				} else {
					out = append(out, spanPiece(s))
				}
			}

		case tokens < cfg.MinTokens:
			buf = newMergeBuffer(s)

		default:
			out = append(out, spanPiece(s))
		}
	}
	// End-of-file flush: residual content is emitted even below MinTokens.
	flush()

	return out
}

// mergeBuffer accumulates consecutive undersized spans until the combined
// range reaches MinTokens or a non-mergeable boundary is hit.
type mergeBuffer struct {
	startLine int
	endLine   int
	kind      string
	name      string
	parents   []string
	imports   []string
	count     int
}

func newMergeBuffer(s *Span) *mergeBuffer {
	return &mergeBuffer{
		startLine: s.StartLine,
		endLine:   s.EndLine,
		kind:      s.Kind,
		name:      s.Name,
		parents:   s.Parents,
		imports:   s.Imports,
		count:     1,
	}
}

// accepts reports whether s may merge into the buffer. Spans under the
// same parent scope always may; spans under different non-empty parent
// chains never do — merging across top-level class boundaries is the
// boundary type that must not be crossed. At module scope (no parents)
// any neighbors merge.
func (b *mergeBuffer) accepts(s *Span) bool {
	if len(b.parents) == 0 && len(s.Parents) == 0 {
		return true
	}
	return equalChains(b.parents, s.Parents)
}

func (b *mergeBuffer) extend(s *Span) {
	if s.EndLine > b.endLine {
		b.endLine = s.EndLine
	}
	b.count++
}

func (b *mergeBuffer) piece() piece {
	kind := b.kind
	if b.count > 1 {
		kind = "statement-block"
	}
	return piece{
		kind:      kind,
		name:      b.name,
		parents:   b.parents,
		imports:   b.imports,
		startLine: b.startLine,
		endLine:   b.endLine,
	}
}

func equalChains(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func spanPiece(s *Span) piece {
	return piece{
		kind:      s.Kind,
		name:      s.Name,
		parents:   s.Parents,
		imports:   s.Imports,
		startLine: s.StartLine,
		endLine:   s.EndLine,
	}
}

// splitSpan reduces an oversized span. Child boundary nodes recorded by
// the extractor are the preferred cut points; the regions between cuts
// tile the span exactly. Regions still over budget degrade to raw line
// windows. Parent-chain metadata is inherited unchanged by every part.
func splitSpan(s *Span, lines []string, cfg Config, est *Estimator) []piece {
	regions := cutRegions(s)

	var out []piece
	var cur *piece
	var curCost int
	for _, r := range regions {
		cost := rangeCost(lines, r.startLine, r.endLine, est)
		if cur != nil && curCost+cost <= cfg.MaxTokens {
			cur.endLine = r.endLine
			curCost += cost
			continue
		}
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
		if cost > cfg.MaxTokens {
			out = append(out, lineWindows(lines, r.startLine, r.endLine, s.Kind, s.Name, s.Parents, s.Imports, cfg, est)...)
			continue
		}
		p := piece{
			kind:      s.Kind,
			name:      s.Name,
			parents:   s.Parents,
			imports:   s.Imports,
			startLine: r.startLine,
			endLine:   r.endLine,
		}
		cur = &p
		curCost = cost
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

type lineRange struct {
	startLine int
	endLine   int
}

// cutRegions partitions a span's line range at its child boundaries.
// Without children the whole span is one region, which the caller then
// window-splits.
func cutRegions(s *Span) []lineRange {
	var regions []lineRange
	cur := s.StartLine
	for _, c := range s.Children {
		if c.StartLine > cur {
			regions = append(regions, lineRange{cur, c.StartLine - 1})
		}
		end := c.EndLine
		if end < cur {
			continue
		}
		regions = append(regions, lineRange{max(cur, c.StartLine), end})
		cur = end + 1
	}
	if cur <= s.EndLine {
		regions = append(regions, lineRange{cur, s.EndLine})
	}
	return regions
}

// expandInner flattens a span with children into the children themselves
// plus the container's surrounding regions, recursively. The result tiles
// the original span.
func expandInner(s *Span) []*Span {
	if len(s.Children) == 0 {
		return []*Span{s}
	}
	var out []*Span
	cur := s.StartLine
	for _, c := range s.Children {
		if c.StartLine > cur {
			out = append(out, &Span{
				Kind:      s.Kind,
				Name:      s.Name,
				StartLine: cur,
				EndLine:   c.StartLine - 1,
				Parents:   s.Parents,
				Imports:   s.Imports,
			})
		}
		out = append(out, expandInner(c)...)
		if c.EndLine+1 > cur {
			cur = c.EndLine + 1
		}
	}
	if cur <= s.EndLine {
		out = append(out, &Span{
			Kind:      s.Kind,
			Name:      s.Name,
			StartLine: cur,
			EndLine:   s.EndLine,
			Parents:   s.Parents,
			Imports:   s.Imports,
		})
	}
	return out
}

// lineWindows splits a line range into fixed windows sized so each
// window's token cost stays within MaxTokens. Lines are never split.
func lineWindows(lines []string, start, end int, kind, name string, parents, imports []string, cfg Config, est *Estimator) []piece {
	var out []piece
	winStart := start
	winCost := 0
	for ln := start; ln <= end; ln++ {
		cost := est.LineCost(lines[ln-1])
		if ln > winStart && winCost+cost > cfg.MaxTokens {
			out = append(out, piece{
				kind: kind, name: name, parents: parents, imports: imports,
				startLine: winStart, endLine: ln - 1,
			})
			winStart = ln
			winCost = 0
		}
		winCost += cost
	}
	out = append(out, piece{
		kind: kind, name: name, parents: parents, imports: imports,
		startLine: winStart, endLine: end,
	})
	return out
}

// applyOverlap repeats up to OverlapTokens worth of a piece's trailing
// lines at the head of the next piece. Overlap is only introduced between
// pieces that are physically adjacent in the file; a gap between pieces
// suppresses it, and it never crosses files because pieces always belong
// to one file.
func applyOverlap(pieces []piece, lines []string, cfg Config, est *Estimator) {
	if cfg.OverlapTokens <= 0 {
		return
	}
	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1]
		if prev.endLine+1 != pieces[i].startLine {
			continue
		}
		budget := cfg.OverlapTokens
		n := 0
		for ln := prev.endLine; ln >= prev.startLine; ln-- {
			cost := est.LineCost(lines[ln-1])
			if cost > budget {
				break
			}
			budget -= cost
			n++
		}
		pieces[i].overlap = n
	}
}

func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func rangeCost(lines []string, start, end int, est *Estimator) int {
	cost := 0
	for ln := start; ln <= end && ln <= len(lines); ln++ {
		cost += est.LineCost(lines[ln-1])
	}
	return cost
}
