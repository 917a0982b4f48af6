package store

import "time"

// FileRecord represents an indexed source file.
type FileRecord struct {
	ID           int64
	Path         string
	Hash         string
	Language     string
	SizeBytes    int64
	LastModified time.Time
	IndexedAt    time.Time
}

// ChunkRow is a persisted chunk record.
type ChunkRow struct {
	ID           int64
	FileID       int64
	ChunkID      string // content-derived identity, e.g. "sha1:..."
	Name         string
	Kind         string
	StartLine    int
	EndLine      int
	OverlapLines int
	Tokens       int
	Summary      string
	Parents      []string
	Imports      []string
	Fingerprint  string
	Fallback     bool
	Content      string
}

// FileSummary is a lightweight file record for listings.
type FileSummary struct {
	Path     string
	Language string
	Chunks   int
}

// IndexStats summarizes the index contents.
type IndexStats struct {
	Files            int
	Chunks           int
	ChunksByLanguage map[string]int
}

// SearchResult is a chunk with its similarity distance and file path.
type SearchResult struct {
	Chunk    ChunkRow
	FilePath string
	Language string
	Distance float64
}
