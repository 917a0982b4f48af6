package chunker

import (
	"sync"
	"time"
)

// Stats is the serializable form of the run manifest.
type Stats struct {
	FoldersScanned   int            `json:"folders_scanned"`
	FilesTotal       int            `json:"total_files"`
	FilesParsed      int            `json:"parsed_files"`
	FilesFailed      int            `json:"failed_files"`
	TotalChunks      int            `json:"total_chunks"`
	ChunksByLanguage map[string]int `json:"chunks_by_language"`
	AvgChunkTokens   int            `json:"avg_chunk_tokens"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Manifest accumulates aggregate counters over one chunking run. It is
// the only mutable run-scoped state in the engine; all updates go through
// the mutex, one per completed file, so concurrent per-file workers can
// report through a single accumulator. A manifest is never shared across
// runs.
type Manifest struct {
	mu       sync.Mutex
	stats    Stats
	tokenSum int
}

// NewManifest creates an empty manifest for one run.
func NewManifest() *Manifest {
	return &Manifest{
		stats: Stats{ChunksByLanguage: make(map[string]int)},
	}
}

// AddFolders records scanned directories.
func (m *Manifest) AddFolders(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FoldersScanned += n
}

// RecordFile folds one completed file into the counters. A file that
// needed fallback because of a parse error counts as failed (it still
// produced chunks); everything else, including empty files, counts as
// parsed.
func (m *Manifest) RecordFile(lang string, res FileResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FilesTotal++
	if res.ParseErr != nil {
		m.stats.FilesFailed++
	} else {
		m.stats.FilesParsed++
	}
	if len(res.Chunks) > 0 {
		m.stats.TotalChunks += len(res.Chunks)
		m.stats.ChunksByLanguage[lang] += len(res.Chunks)
		for _, c := range res.Chunks {
			m.tokenSum += c.Tokens
		}
	}
}

// Snapshot finalizes derived fields and returns a copy of the counters.
func (m *Manifest) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ChunksByLanguage = make(map[string]int, len(m.stats.ChunksByLanguage))
	for k, v := range m.stats.ChunksByLanguage {
		s.ChunksByLanguage[k] = v
	}
	if s.TotalChunks > 0 {
		s.AvgChunkTokens = m.tokenSum / s.TotalChunks
	}
	s.Timestamp = time.Now().UTC()
	return s
}
