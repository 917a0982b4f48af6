package index

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"repodex/internal/chunker"
	"repodex/internal/embedder"
	"repodex/internal/emit"
	"repodex/internal/store"
	"repodex/internal/walker"
)

const embedBatchSize = 32

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	ChunksTotal  int
	ChunksReused int
	Manifest     chunker.Stats
}

// ProgressFunc receives progress updates from the pipeline.
type ProgressFunc func(stage string, done, total int)

// fileWork is a file that needs to be (re-)indexed.
type fileWork struct {
	info walker.FileInfo
	hash string
	file chunker.SourceFile
}

// chunkBatch is the chunking outcome for a single file.
type chunkBatch struct {
	work fileWork
	res  chunker.FileResult
}

// embeddedBatch has chunks with their embeddings ready to store.
type embeddedBatch struct {
	work       fileWork
	res        chunker.FileResult
	embeddings [][]float32
	reused     int
}

// runPipeline drives the staged indexing run: walk → hash/check →
// chunk → embed → store. Per-file chunking parallelizes freely; the
// manifest and the store are written from a single goroutine. A failure
// local to one file never aborts the run.
func runPipeline(
	ctx context.Context,
	root string,
	s store.Store,
	engine *chunker.Engine,
	registry *chunker.Registry,
	emb embedder.Embedder,
	manifest *chunker.Manifest,
	errLog *emit.ErrorLog,
	numWorkers int,
	onProgress ProgressFunc,
) (*Stats, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var stats Stats

	// Stage 1: Walk.
	fileCh, walkResCh := walker.Walk(root, nil)

	// Stage 2: Read + hash + unchanged-file check (N workers).
	workCh := make(chan fileWork, numWorkers)
	var readGroup errgroup.Group
	var filesTotal, filesSkipped counter
	for range numWorkers {
		readGroup.Go(func() error {
			for fi := range fileCh {
				if ctx.Err() != nil {
					continue // drain; in-flight files are abandoned without side effects
				}
				filesTotal.inc()
				src, err := os.ReadFile(fi.Path)
				if err != nil || isBinary(src) {
					filesSkipped.inc()
					continue
				}
				h := sha256.Sum256(src)
				hash := hex.EncodeToString(h[:])

				existing, err := s.GetFileHash(fi.RelPath)
				if err == nil && existing == hash {
					filesSkipped.inc()
					continue // unchanged
				}

				workCh <- fileWork{
					info: fi,
					hash: hash,
					file: chunker.SourceFile{
						Path:         fi.RelPath,
						Language:     registry.Detect(fi.Path),
						Content:      src,
						LastModified: fi.ModTime,
					},
				}
			}
			return nil
		})
	}
	go func() {
		readGroup.Wait()
		close(workCh)
	}()

	// Stage 3: Chunk (N workers). The engine never fails; parse errors
	// travel with the result and are logged downstream.
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkGroup errgroup.Group
	for range numWorkers {
		chunkGroup.Go(func() error {
			for w := range workCh {
				if ctx.Err() != nil {
					continue
				}
				chunkCh <- chunkBatch{work: w, res: engine.ChunkFile(ctx, w.file)}
			}
			return nil
		})
	}
	go func() {
		chunkGroup.Wait()
		close(chunkCh)
	}()

	// Stage 4: Embed (1 worker). Chunks whose fingerprint is already
	// stored re-use their existing embedding instead of recomputing.
	embeddedCh := make(chan embeddedBatch, 4)
	var embedErr error
	go func() {
		defer close(embeddedCh)

		for batch := range chunkCh {
			if embedErr != nil || ctx.Err() != nil {
				continue
			}

			known, err := s.GetChunkEmbeddings(batch.work.info.RelPath)
			if err != nil {
				known = nil
			}

			embeddings := make([][]float32, len(batch.res.Chunks))
			var missing []string
			var missingIdx []int
			reused := 0
			for i, c := range batch.res.Chunks {
				if vec, ok := known[c.Fingerprint]; ok {
					embeddings[i] = vec
					reused++
					continue
				}
				missing = append(missing, c.Text)
				missingIdx = append(missingIdx, i)
			}

			failed := false
			for i := 0; i < len(missing); i += embedBatchSize {
				end := min(i+embedBatchSize, len(missing))
				vecs, err := emb.Embed(ctx, missing[i:end])
				if err != nil {
					fmt.Fprintf(os.Stderr, "embed error %s: %v\n", batch.work.info.RelPath, err)
					embedErr = err
					failed = true
					break
				}
				for j, v := range vecs {
					embeddings[missingIdx[i+j]] = v
				}
			}
			if failed {
				continue
			}

			embeddedCh <- embeddedBatch{
				work:       batch.work,
				res:        batch.res,
				embeddings: embeddings,
				reused:     reused,
			}
		}
	}()

	// Stage 5: Store (1 worker). The only stage with run-scoped mutable
	// state: the store, the manifest, and the error log.
	var storeErr error
	storeDone := make(chan struct{})
	go func() {
		defer close(storeDone)

		for eb := range embeddedCh {
			lang := eb.work.file.Language

			if eb.res.ParseErr != nil && errLog != nil {
				errLog.Record(eb.work.info.RelPath, eb.res.ParseErr)
			}

			fileID, err := s.UpsertFile(store.FileRecord{
				Path:         eb.work.info.RelPath,
				Hash:         eb.work.hash,
				Language:     lang,
				SizeBytes:    eb.work.info.Size,
				LastModified: eb.work.info.ModTime,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "store upsert error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			rows := make([]store.ChunkRow, len(eb.res.Chunks))
			for i, c := range eb.res.Chunks {
				rows[i] = store.ChunkRow{
					ChunkID:      c.ID,
					Name:         c.Name,
					Kind:         c.NodeType,
					StartLine:    c.StartLine,
					EndLine:      c.EndLine,
					OverlapLines: c.OverlapLines,
					Tokens:       c.Tokens,
					Summary:      c.Summary,
					Parents:      c.Parents,
					Imports:      c.Imports,
					Fingerprint:  c.Fingerprint,
					Fallback:     c.Fallback,
					Content:      c.Text,
				}
			}

			chunkIDs, err := s.InsertChunks(fileID, rows)
			if err != nil {
				fmt.Fprintf(os.Stderr, "store chunks error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			if err := s.InsertEmbeddings(chunkIDs, eb.embeddings); err != nil {
				fmt.Fprintf(os.Stderr, "store embeddings error %s: %v\n", eb.work.info.RelPath, err)
				storeErr = err
				continue
			}

			manifest.RecordFile(lang, eb.res)
			stats.FilesIndexed++
			stats.ChunksTotal += len(eb.res.Chunks)
			stats.ChunksReused += eb.reused
			if onProgress != nil {
				onProgress("Indexing files...", stats.FilesIndexed, filesTotal.get())
			}
		}
	}()

	<-storeDone

	res := <-walkResCh
	if res.Err != nil {
		return nil, fmt.Errorf("walk error: %w", res.Err)
	}
	manifest.AddFolders(res.Folders)

	if err := ctx.Err(); err != nil {
		return &stats, err
	}

	stats.FilesTotal = filesTotal.get()
	stats.FilesSkipped = stats.FilesTotal - stats.FilesIndexed
	stats.Manifest = manifest.Snapshot()

	if embedErr != nil {
		return &stats, fmt.Errorf("embedding failed: %w", embedErr)
	}
	if storeErr != nil {
		return &stats, fmt.Errorf("storage failed: %w", storeErr)
	}

	return &stats, nil
}

type counter struct{ n atomic.Int64 }

func (c *counter) inc()     { c.n.Add(1) }
func (c *counter) get() int { return int(c.n.Load()) }

// isBinary reports whether content looks like a binary file (NUL byte in
// the leading window).
func isBinary(src []byte) bool {
	window := src
	if len(window) > 512 {
		window = window[:512]
	}
	return bytes.IndexByte(window, 0) >= 0
}
