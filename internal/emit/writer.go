// Package emit writes the chunking run's output surface: the append-only
// chunk stream, the run manifest, and the parse-error log.
package emit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"repodex/internal/chunker"
)

// ChunkWriter serializes chunk records to a JSONL stream, one record per
// line, in the order they are written.
type ChunkWriter struct {
	f   *os.File
	enc *json.Encoder
}

// NewChunkWriter truncates (or creates) the file at path and returns a
// writer for this run's chunk stream.
func NewChunkWriter(path string) (*ChunkWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create chunk stream: %w", err)
	}
	return &ChunkWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one chunk record.
func (w *ChunkWriter) Write(c chunker.Chunk) error {
	return w.enc.Encode(c)
}

// Close flushes and closes the stream.
func (w *ChunkWriter) Close() error {
	return w.f.Close()
}

// WriteManifest writes the finalized run statistics as indented JSON.
func WriteManifest(path string, s chunker.Stats) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ErrorLog records one line per file that failed AST parsing and was
// recovered through fallback chunking. Safe for concurrent use.
type ErrorLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenErrorLog truncates (or creates) the log file at path.
func OpenErrorLog(path string) (*ErrorLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parse-error log: %w", err)
	}
	return &ErrorLog{f: f}, nil
}

// Record logs a failed-then-recovered file with its failure reason.
func (l *ErrorLog) Record(path string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.f, "%s - %s: %v\n", time.Now().UTC().Format(time.RFC3339), path, cause)
}

// Close closes the log file.
func (l *ErrorLog) Close() error {
	return l.f.Close()
}
