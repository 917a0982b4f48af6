package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// SourceFile is the read-only input to a per-file chunking run. Content
// is expected to already be resident in memory.
type SourceFile struct {
	Path         string
	Language     string
	Content      []byte
	LastModified time.Time
}

// FileResult is the outcome of chunking one file. ParseErr is set only
// when AST parsing failed and the file was recovered through fallback;
// an unsupported language routes to fallback without an error.
type FileResult struct {
	Chunks   []Chunk
	Fallback bool
	ParseErr error
}

// Engine chunks source files: grammar-driven AST chunking with merge,
// split, and overlap, degrading to line-window chunking whenever the
// structural path is unavailable. Per-file runs are independent and free
// of shared mutable state, so one Engine may serve concurrent workers.
type Engine struct {
	registry *Registry
	est      *Estimator
	cfg      Config
}

// NewEngine creates an engine over the given grammar registry.
func NewEngine(r *Registry, cfg Config) *Engine {
	if cfg.Nested == "" {
		cfg.Nested = NestedOuter
	}
	return &Engine{registry: r, est: NewEstimator(), cfg: cfg}
}

// Config returns the engine's token budgets.
func (e *Engine) Config() Config { return e.cfg }

// ChunkFile produces the complete chunk sequence for one file. It never
// returns a hard error: a whitespace-only file yields zero chunks, and
// every other file yields at least one, via the AST path or fallback.
func (e *Engine) ChunkFile(ctx context.Context, f SourceFile) FileResult {
	if len(strings.TrimSpace(string(f.Content))) == 0 {
		return FileResult{}
	}
	lines := strings.Split(string(f.Content), "\n")

	g, err := e.registry.Resolve(f.Language)
	if err != nil {
		// Unsupported language: not an error, straight to fallback.
		return e.fallback(f, lines, nil)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g.Language)
	tree, err := parser.ParseCtx(ctx, nil, f.Content)
	if err != nil {
		return e.fallback(f, lines, fmt.Errorf("parse %s: %w", f.Path, err))
	}
	defer tree.Close()

	// A tree with localized errors is still walked; spans from the
	// intact regions survive.
	spans, err := extract(tree, g, f.Content)
	if err != nil {
		return e.fallback(f, lines, err)
	}
	if len(spans) == 0 {
		if tree.RootNode().HasError() {
			// Malformed input: tree-sitter returns an ERROR tree rather
			// than failing ParseCtx, so a zero-span error tree is the
			// parse-failure signal.
			return e.fallback(f, lines, fmt.Errorf("parse %s: syntax errors, no boundary nodes recovered", f.Path))
		}
		// Only top-level statements, or nothing the query recognizes.
		return e.fallback(f, lines, nil)
	}

	pieces := assemble(spans, lines, e.cfg, e.est)
	applyOverlap(pieces, lines, e.cfg, e.est)
	return FileResult{Chunks: buildRecords(f, pieces, lines, e.est)}
}

func (e *Engine) fallback(f SourceFile, lines []string, cause error) FileResult {
	pieces := chunkByLines(lines, e.cfg, e.est)
	applyOverlap(pieces, lines, e.cfg, e.est)
	return FileResult{
		Chunks:   buildRecords(f, pieces, lines, e.est),
		Fallback: true,
		ParseErr: cause,
	}
}
