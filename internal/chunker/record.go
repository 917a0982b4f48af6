package chunker

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
)

// Chunk is the final, immutable unit of output. Text includes any overlap
// borrowed from the preceding chunk; OverlapLines records how many leading
// lines are shared so the non-overlapping partition of the file can be
// reconstructed.
type Chunk struct {
	ID           string    `json:"id"`
	FilePath     string    `json:"filepath"`
	Language     string    `json:"language"`
	NodeType     string    `json:"node_type"`
	Name         string    `json:"name,omitempty"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	OverlapLines int       `json:"overlap_lines,omitempty"`
	Text         string    `json:"text"`
	Summary      string    `json:"summary"`
	Tokens       int       `json:"tokens_estimate"`
	Parents      []string  `json:"parents"`
	Imports      []string  `json:"imports"`
	Fingerprint  string    `json:"fingerprint"`
	Fallback     bool      `json:"parser_fallback,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ChunkID derives the deterministic chunk identity from the file path and
// the chunk's range and text. Identical input always produces the same ID.
func ChunkID(path string, startLine, endLine int, text string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%d:%s", path, startLine, endLine, text)))
	return fmt.Sprintf("sha1:%x", h)
}

// Fingerprint hashes the exact chunk text. Downstream embedding compares
// fingerprints across runs to skip unchanged chunks.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(text))
}

// buildRecords turns assembled pieces into final chunk records for one
// file, computing identity, fingerprint, summary, and token estimate.
func buildRecords(f SourceFile, pieces []piece, lines []string, est *Estimator) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		textStart := p.startLine - p.overlap
		text := joinLines(lines, textStart, p.endLine)
		parents := p.parents
		if parents == nil {
			parents = []string{}
		}
		imports := p.imports
		if imports == nil {
			imports = []string{}
		}
		chunks = append(chunks, Chunk{
			ID:           ChunkID(f.Path, textStart, p.endLine, text),
			FilePath:     f.Path,
			Language:     f.Language,
			NodeType:     p.kind,
			Name:         p.name,
			StartLine:    textStart,
			EndLine:      p.endLine,
			OverlapLines: p.overlap,
			Text:         text,
			Summary:      summarize(p.kind, text, p.overlap),
			Tokens:       est.Estimate(text),
			Parents:      parents,
			Imports:      imports,
			Fingerprint:  Fingerprint(text),
			Fallback:     p.fallback,
			LastModified: f.LastModified,
		})
	}
	return chunks
}

const summaryMaxLen = 100

// summarize derives a short human-readable summary from the chunk's first
// own line (skipping overlap), usually the signature.
func summarize(kind, text string, overlapLines int) string {
	lines := strings.Split(text, "\n")
	if overlapLines >= len(lines) {
		overlapLines = 0
	}
	first := ""
	for _, line := range lines[overlapLines:] {
		if t := strings.TrimSpace(line); t != "" {
			first = t
			break
		}
	}
	if len(first) > summaryMaxLen {
		cut := summaryMaxLen
		for cut > 0 && !utf8.RuneStart(first[cut]) {
			cut--
		}
		first = first[:cut] + "..."
	}
	if first == "" {
		return kind
	}
	return fmt.Sprintf("%s: %s", kind, first)
}
