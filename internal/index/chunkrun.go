package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"repodex/internal/chunker"
	"repodex/internal/emit"
	"repodex/internal/walker"
)

// ChunkRun performs a chunk-only run: every discovered file is chunked
// and streamed to <outDir>/chunks.jsonl, with manifest.json and
// parse_errors.log written alongside. No embeddings are computed and no
// database is touched.
func ChunkRun(ctx context.Context, root, outDir string, engine *chunker.Engine, registry *chunker.Registry, numWorkers int) (chunker.Stats, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return chunker.Stats{}, fmt.Errorf("create output directory: %w", err)
	}

	writer, err := emit.NewChunkWriter(filepath.Join(outDir, "chunks.jsonl"))
	if err != nil {
		return chunker.Stats{}, err
	}
	defer writer.Close()

	errLog, err := emit.OpenErrorLog(filepath.Join(outDir, "parse_errors.log"))
	if err != nil {
		return chunker.Stats{}, err
	}
	defer errLog.Close()

	manifest := chunker.NewManifest()

	fileCh, walkResCh := walker.Walk(root, nil)

	// Per-file chunking is independent and side-effect free; fan out.
	type fileChunks struct {
		lang string
		path string
		res  chunker.FileResult
	}
	resCh := make(chan fileChunks, numWorkers)
	var g errgroup.Group
	for range numWorkers {
		g.Go(func() error {
			for fi := range fileCh {
				if ctx.Err() != nil {
					continue
				}
				src, err := os.ReadFile(fi.Path)
				if err != nil || isBinary(src) {
					continue
				}
				f := chunker.SourceFile{
					Path:         fi.RelPath,
					Language:     registry.Detect(fi.Path),
					Content:      src,
					LastModified: fi.ModTime,
				}
				resCh <- fileChunks{lang: f.Language, path: f.Path, res: engine.ChunkFile(ctx, f)}
			}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(resCh)
	}()

	// Single consumer owns the output stream, the error log, and the
	// manifest.
	var writeErr error
	for fc := range resCh {
		manifest.RecordFile(fc.lang, fc.res)
		if fc.res.ParseErr != nil {
			errLog.Record(fc.path, fc.res.ParseErr)
		}
		for _, c := range fc.res.Chunks {
			if err := writer.Write(c); err != nil && writeErr == nil {
				writeErr = err
			}
		}
	}

	res := <-walkResCh
	if res.Err != nil {
		return chunker.Stats{}, fmt.Errorf("walk error: %w", res.Err)
	}
	manifest.AddFolders(res.Folders)

	if writeErr != nil {
		return chunker.Stats{}, fmt.Errorf("write chunk stream: %w", writeErr)
	}
	if err := ctx.Err(); err != nil {
		return chunker.Stats{}, err
	}

	stats := manifest.Snapshot()
	if err := emit.WriteManifest(filepath.Join(outDir, "manifest.json"), stats); err != nil {
		return stats, err
	}
	return stats, nil
}
