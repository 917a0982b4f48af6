package emit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repodex/internal/chunker"
)

func TestChunkWriterProducesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	w, err := NewChunkWriter(path)
	require.NoError(t, err)

	in := []chunker.Chunk{
		{ID: "sha1:aa", FilePath: "a.go", Language: "go", NodeType: "function", Name: "A", StartLine: 1, EndLine: 3, Text: "func A() {}", Parents: []string{}, Imports: []string{}},
		{ID: "sha1:bb", FilePath: "b.py", Language: "python", NodeType: "class", Name: "B", StartLine: 1, EndLine: 9, Text: "class B: ...", Parents: []string{}, Imports: []string{"import os"}},
	}
	for _, c := range in {
		require.NoError(t, w.Write(c))
	}
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []chunker.Chunk
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var c chunker.Chunk
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		out = append(out, c)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, in, out)
}

func TestChunkWriterTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0o644))

	w, err := NewChunkWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(chunker.Chunk{ID: "sha1:cc"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m := chunker.NewManifest()
	m.AddFolders(2)
	m.RecordFile("go", chunker.FileResult{Chunks: []chunker.Chunk{{Tokens: 120}}})
	require.NoError(t, WriteManifest(path, m.Snapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var s chunker.Stats
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, 2, s.FoldersScanned)
	assert.Equal(t, 1, s.FilesTotal)
	assert.Equal(t, 1, s.TotalChunks)
	assert.Equal(t, 120, s.AvgChunkTokens)
	assert.False(t, s.Timestamp.IsZero())
}

func TestErrorLogRecordsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parse_errors.log")
	l, err := OpenErrorLog(path)
	require.NoError(t, err)

	l.Record("src/broken.py", errors.New("unexpected indent"))
	l.Record("src/worse.js", errors.New("parser timeout"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "src/broken.py: unexpected indent")
	assert.Contains(t, string(data), "src/worse.js: parser timeout")
}
