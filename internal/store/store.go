package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store provides persistence for indexed files, chunks, and embeddings.
type Store interface {
	// GetFileHash returns the stored hash for a path, or "" if not indexed.
	GetFileHash(path string) (string, error)
	// GetChunkEmbeddings returns fingerprint → embedding for a file's
	// stored chunks, so unchanged chunks can be re-used without
	// recomputing their embeddings.
	GetChunkEmbeddings(path string) (map[string][]float32, error)
	// UpsertFile inserts or updates a file record and returns its ID.
	// It also deletes any existing chunks and embeddings for the file.
	UpsertFile(f FileRecord) (int64, error)
	// InsertChunks inserts chunks for a file and returns their row IDs.
	InsertChunks(fileID int64, chunks []ChunkRow) ([]int64, error)
	// InsertEmbeddings stores embeddings keyed by chunk row ID.
	InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error
	// Search finds the top-k chunks closest to the query embedding.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// ListFiles returns all indexed files with their chunk counts.
	ListFiles() ([]FileSummary, error)
	// Stats summarizes the index contents.
	Stats() (IndexStats, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// DeleteAll removes all files, chunks, and embeddings.
	DeleteAll() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) GetChunkEmbeddings(path string) (map[string][]float32, error) {
	rows, err := s.db.Query(`
		SELECT c.fingerprint, v.embedding
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		JOIN vec_chunks v ON v.chunk_id = c.id
		WHERE f.path = ?
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var fp string
		var blob []byte
		if err := rows.Scan(&fp, &blob); err != nil {
			return nil, err
		}
		out[fp] = deserializeFloat32(blob)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertFile(f FileRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
	if err == nil {
		if err := deleteFileChunks(tx, existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			"UPDATE files SET hash = ?, language = ?, size_bytes = ?, last_modified = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?",
			f.Hash, f.Language, f.SizeBytes, f.LastModified, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO files (path, hash, language, size_bytes, last_modified) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Hash, f.Language, f.SizeBytes, f.LastModified,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func deleteFileChunks(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM chunks WHERE file_id = ?", fileID)
	if err != nil {
		return err
	}
	var chunkIDs []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()

	for _, cid := range chunkIDs {
		if _, err := tx.Exec("DELETE FROM vec_chunks WHERE chunk_id = ?", cid); err != nil {
			return err
		}
	}
	_, err = tx.Exec("DELETE FROM chunks WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStore) InsertChunks(fileID int64, chunks []ChunkRow) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (file_id, chunk_id, name, kind, start_line, end_line, overlap_lines,
		                    tokens, summary, parents, imports, fingerprint, fallback, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		parents, err := json.Marshal(c.Parents)
		if err != nil {
			return nil, err
		}
		imports, err := json.Marshal(c.Imports)
		if err != nil {
			return nil, err
		}
		res, err := stmt.Exec(fileID, c.ChunkID, c.Name, c.Kind, c.StartLine, c.EndLine, c.OverlapLines,
			c.Tokens, c.Summary, string(parents), string(imports), c.Fingerprint, c.Fallback, c.Content)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched chunk IDs (%d) and embeddings (%d)", len(chunkIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cid := range chunkIDs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", cid, err)
		}
		if _, err := stmt.Exec(cid, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT v.chunk_id, v.distance,
		       c.chunk_id, c.name, c.kind, c.start_line, c.end_line, c.overlap_lines,
		       c.tokens, c.summary, c.parents, c.imports, c.fingerprint, c.fallback, c.content,
		       f.path, f.language
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN files f ON f.id = c.file_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var parents, imports string
		err := rows.Scan(
			&r.Chunk.ID, &r.Distance,
			&r.Chunk.ChunkID, &r.Chunk.Name, &r.Chunk.Kind, &r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.OverlapLines,
			&r.Chunk.Tokens, &r.Chunk.Summary, &parents, &imports, &r.Chunk.Fingerprint, &r.Chunk.Fallback, &r.Chunk.Content,
			&r.FilePath, &r.Language,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(parents), &r.Chunk.Parents); err != nil {
			return nil, fmt.Errorf("decode parents for chunk %d: %w", r.Chunk.ID, err)
		}
		if err := json.Unmarshal([]byte(imports), &r.Chunk.Imports); err != nil {
			return nil, fmt.Errorf("decode imports for chunk %d: %w", r.Chunk.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ListFiles() ([]FileSummary, error) {
	rows, err := s.db.Query(`
		SELECT f.path, f.language, COUNT(c.id)
		FROM files f
		LEFT JOIN chunks c ON c.file_id = f.id
		GROUP BY f.id
		ORDER BY f.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileSummary
	for rows.Next() {
		var f FileSummary
		if err := rows.Scan(&f.Path, &f.Language, &f.Chunks); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) Stats() (IndexStats, error) {
	stats := IndexStats{ChunksByLanguage: make(map[string]int)}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&stats.Files); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.Chunks); err != nil {
		return stats, err
	}

	rows, err := s.db.Query(`
		SELECT f.language, COUNT(c.id)
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		GROUP BY f.language
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return stats, err
		}
		stats.ChunksByLanguage[lang] = n
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM vec_chunks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// deserializeFloat32 decodes the little-endian float32 blob format used
// by sqlite-vec.
func deserializeFloat32(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
