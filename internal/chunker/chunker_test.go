package chunker_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repodex/internal/chunker"
	"repodex/internal/chunker/languages"
)

func newTestEngine(cfg chunker.Config) *chunker.Engine {
	r := chunker.NewRegistry()
	languages.RegisterDefaults(r)
	return chunker.NewEngine(r, cfg)
}

func goFile(content string) chunker.SourceFile {
	return chunker.SourceFile{
		Path:         "pkg/example.go",
		Language:     "go",
		Content:      []byte(content),
		LastModified: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestChunkFileSingleFunction(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\nfunc Answer() int {\n\tn := 0\n")
	for i := 0; i < 40; i++ {
		b.WriteString("\tn = n + 1\n")
	}
	b.WriteString("\treturn n\n}\n")

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 10, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(b.String()))

	require.NoError(t, res.ParseErr)
	assert.False(t, res.Fallback)
	require.Len(t, res.Chunks, 1)

	c := res.Chunks[0]
	assert.Equal(t, "function", c.NodeType)
	assert.Equal(t, "Answer", c.Name)
	assert.Equal(t, 3, c.StartLine)
	assert.Equal(t, 0, c.OverlapLines)
	assert.True(t, strings.HasPrefix(c.Text, "func Answer() int {"))
	assert.True(t, strings.HasSuffix(c.Text, "}"))
	assert.True(t, strings.HasPrefix(c.ID, "sha1:"))
	assert.Len(t, c.Fingerprint, 16)
	assert.Greater(t, c.Tokens, 0)
	assert.Equal(t, []string{}, c.Parents)
	assert.Equal(t, []string{}, c.Imports)
	assert.Equal(t, goFile("").LastModified, c.LastModified)
	assert.Contains(t, c.Summary, "func Answer() int {")
}

func TestChunkFileMergesTinyFunctions(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "func tiny%d() {}\n\n", i)
	}

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 50, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(b.String()))

	require.NoError(t, res.ParseErr)
	assert.False(t, res.Fallback)
	require.NotEmpty(t, res.Chunks)
	assert.Less(t, len(res.Chunks), 10, "tiny functions should merge")
	assert.Equal(t, "statement-block", res.Chunks[0].NodeType)

	for i, c := range res.Chunks[:len(res.Chunks)-1] {
		assert.GreaterOrEqual(t, c.Tokens, 50, "chunk %d below minimum", i)
	}
}

func TestChunkFileSplitsOversizedFunction(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\nfunc Bulk() {\n\tx := 0\n")
	for i := 0; i < 400; i++ {
		b.WriteString("\tx = x + 1\n")
	}
	b.WriteString("\t_ = x\n}\n")
	content := b.String()
	fileLines := strings.Split(content, "\n")

	cfg := chunker.Config{MaxTokens: 200, MinTokens: 10, OverlapTokens: 20}
	eng := newTestEngine(cfg)
	res := eng.ChunkFile(context.Background(), goFile(content))

	require.NoError(t, res.ParseErr)
	assert.False(t, res.Fallback)
	require.Greater(t, len(res.Chunks), 1)

	for i, c := range res.Chunks {
		assert.Equal(t, "function", c.NodeType)
		assert.Equal(t, "Bulk", c.Name)
		// Text always matches the recorded line range exactly.
		want := strings.Join(fileLines[c.StartLine-1:c.EndLine], "\n")
		assert.Equal(t, want, c.Text)
		if i == 0 {
			assert.Zero(t, c.OverlapLines)
			continue
		}
		assert.Greater(t, c.OverlapLines, 0, "interior chunk %d should carry overlap", i)
		// Stripping the overlap restores the non-overlapping partition.
		logicalStart := c.StartLine + c.OverlapLines
		assert.Equal(t, res.Chunks[i-1].EndLine+1, logicalStart)
	}

	// The partition tiles the whole function body.
	first := res.Chunks[0]
	last := res.Chunks[len(res.Chunks)-1]
	assert.True(t, strings.HasPrefix(first.Text, "func Bulk() {"))
	assert.True(t, strings.HasSuffix(last.Text, "}"))
}

func TestChunkFileNestedOuterKeepsContainerWhole(t *testing.T) {
	src := strings.Join([]string{
		"class Greeter:",
		"    def greet(self):",
		"        return \"hi\"",
		"",
		"    def wave(self):",
		"        return \"wave\"",
		"",
	}, "\n")

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), chunker.SourceFile{
		Path: "greeter.py", Language: "python", Content: []byte(src),
	})

	require.NoError(t, res.ParseErr)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "class", res.Chunks[0].NodeType)
	assert.Equal(t, "Greeter", res.Chunks[0].Name)
	assert.Equal(t, []string{}, res.Chunks[0].Parents)
}

func TestChunkFileNestedInnerEmitsMethods(t *testing.T) {
	src := strings.Join([]string{
		"class Greeter:",
		"    def greet(self):",
		"        return \"hi\"",
		"",
		"    def wave(self):",
		"        return \"wave\"",
		"",
	}, "\n")

	eng := newTestEngine(chunker.Config{
		MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0,
		Nested: chunker.NestedInner,
	})
	res := eng.ChunkFile(context.Background(), chunker.SourceFile{
		Path: "greeter.py", Language: "python", Content: []byte(src),
	})

	require.NoError(t, res.ParseErr)
	var methods []chunker.Chunk
	for _, c := range res.Chunks {
		if c.NodeType == "method" {
			methods = append(methods, c)
		}
	}
	require.Len(t, methods, 2)
	assert.Equal(t, "greet", methods[0].Name)
	assert.Equal(t, "wave", methods[1].Name)
	for _, m := range methods {
		assert.Equal(t, []string{"Greeter"}, m.Parents)
	}
}

func TestChunkFileRecordsImports(t *testing.T) {
	src := strings.Join([]string{
		"package main",
		"",
		"import (",
		"\t\"fmt\"",
		")",
		"",
		"func Hello() { fmt.Println(\"hello\") }",
		"",
	}, "\n")

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(src))

	require.NoError(t, res.ParseErr)
	require.NotEmpty(t, res.Chunks)
	assert.Contains(t, res.Chunks[0].Imports, "import (")
}

func TestChunkFileUnknownLanguageFallsBack(t *testing.T) {
	src := "some plain\ntext file\nwith three lines"

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), chunker.SourceFile{
		Path: "notes.txt", Language: chunker.LangUnknown, Content: []byte(src),
	})

	assert.True(t, res.Fallback)
	assert.NoError(t, res.ParseErr, "unsupported language is not a parse failure")
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, chunker.KindRawLines, res.Chunks[0].NodeType)
	assert.True(t, res.Chunks[0].Fallback)
	assert.Equal(t, src, res.Chunks[0].Text)
}

func TestChunkFileMalformedSourceCountsAsParseFailure(t *testing.T) {
	src := "func (((!!! this is not go at all\n}}} ???\n"

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(src))

	assert.True(t, res.Fallback)
	require.Error(t, res.ParseErr)
	assert.Contains(t, res.ParseErr.Error(), "syntax errors")
	require.NotEmpty(t, res.Chunks, "broken files still produce fallback chunks")
	assert.Equal(t, chunker.KindRawLines, res.Chunks[0].NodeType)

	// The failure is visible in the run manifest.
	m := chunker.NewManifest()
	m.RecordFile("go", res)
	s := m.Snapshot()
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, 0, s.FilesParsed)
}

func TestChunkFileSurvivesLocalizedSyntaxError(t *testing.T) {
	src := strings.Join([]string{
		"package main",
		"",
		"func Good() int {",
		"\treturn 1",
		"}",
		"",
		"func bad( {{{",
		"",
	}, "\n")

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(src))

	// The intact function is recovered through the AST path; the broken
	// tail does not demote the whole file to fallback.
	assert.False(t, res.Fallback)
	assert.NoError(t, res.ParseErr)
	require.NotEmpty(t, res.Chunks)

	var names []string
	for _, c := range res.Chunks {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Good")
	for _, c := range res.Chunks {
		assert.NotEqual(t, chunker.KindRawLines, c.NodeType)
	}
}

func TestChunkFileNoBoundaryNodesFallsBack(t *testing.T) {
	src := "package main\n\nvar x = 1\n"

	eng := newTestEngine(chunker.Config{MaxTokens: 25000, MinTokens: 0, OverlapTokens: 0})
	res := eng.ChunkFile(context.Background(), goFile(src))

	assert.True(t, res.Fallback)
	assert.NoError(t, res.ParseErr)
	require.NotEmpty(t, res.Chunks)
	assert.Equal(t, chunker.KindRawLines, res.Chunks[0].NodeType)
}

func TestChunkFileWhitespaceOnlyYieldsNothing(t *testing.T) {
	eng := newTestEngine(chunker.DefaultConfig())
	res := eng.ChunkFile(context.Background(), goFile("  \n\t\n\n"))

	assert.Empty(t, res.Chunks)
	assert.False(t, res.Fallback)
	assert.NoError(t, res.ParseErr)
}

func TestChunkFileFallbackPartitionReconstructsFile(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "line number %d padded out for weight\n", i)
	}
	content := strings.TrimSuffix(b.String(), "\n")

	eng := newTestEngine(chunker.Config{MaxTokens: 80, MinTokens: 5, OverlapTokens: 15})
	res := eng.ChunkFile(context.Background(), chunker.SourceFile{
		Path: "big.txt", Language: chunker.LangUnknown, Content: []byte(content),
	})

	require.Greater(t, len(res.Chunks), 1)

	var rebuilt []string
	for _, c := range res.Chunks {
		lines := strings.Split(c.Text, "\n")
		rebuilt = append(rebuilt, lines[c.OverlapLines:]...)
	}
	assert.Equal(t, content, strings.Join(rebuilt, "\n"))
}

func TestChunkFileIsDeterministic(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "func job%d() int {\n\treturn %d\n}\n\n", i, i)
	}
	f := goFile(b.String())

	eng := newTestEngine(chunker.DefaultConfig())
	first := eng.ChunkFile(context.Background(), f)
	second := eng.ChunkFile(context.Background(), f)

	assert.Equal(t, first, second)
}
