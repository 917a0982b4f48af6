package index

import (
	"context"
	"fmt"
	"path/filepath"

	"repodex/internal/chunker"
	"repodex/internal/chunker/languages"
	"repodex/internal/embedder"
	"repodex/internal/emit"
	"repodex/internal/store"
)

// Config holds the indexer configuration.
type Config struct {
	DBPath    string
	OllamaURL string
	Model     string
	Workers   int
	Chunking  chunker.Config
}

// Indexer is the public API for indexing and searching codebases.
type Indexer struct {
	store    store.Store
	embedder embedder.Embedder
	engine   *chunker.Engine
	registry *chunker.Registry
	config   Config
}

// New creates an Indexer with the given configuration.
func New(cfg Config) (*Indexer, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := chunker.NewRegistry()
	languages.RegisterDefaults(reg)

	return &Indexer{
		store:    s,
		embedder: embedder.NewOllama(cfg.OllamaURL, cfg.Model),
		engine:   chunker.NewEngine(reg, cfg.Chunking),
		registry: reg,
		config:   cfg,
	}, nil
}

// Index indexes the codebase at the given root path. The run manifest
// and parse-error log are written next to the database.
func (idx *Indexer) Index(ctx context.Context, root string, onProgress ProgressFunc) (*Stats, error) {
	// A changed embedding model invalidates every stored vector.
	lastModel, err := idx.store.GetMeta("embedding_model")
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if lastModel != "" && lastModel != idx.config.Model {
		fmt.Printf("Embedding model changed from %q to %q — re-indexing all files\n", lastModel, idx.config.Model)
		if err := idx.store.DeleteAll(); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}

	outDir := filepath.Dir(idx.config.DBPath)
	errLog, err := emit.OpenErrorLog(filepath.Join(outDir, "parse_errors.log"))
	if err != nil {
		return nil, err
	}
	defer errLog.Close()

	manifest := chunker.NewManifest()
	stats, err := runPipeline(ctx, root, idx.store, idx.engine, idx.registry, idx.embedder, manifest, errLog, idx.config.Workers, onProgress)
	if err != nil {
		return stats, err
	}

	if err := idx.store.SetMeta("embedding_model", idx.config.Model); err != nil {
		return nil, fmt.Errorf("set meta: %w", err)
	}
	if err := emit.WriteManifest(filepath.Join(outDir, "manifest.json"), stats.Manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return stats, nil
}

// Search finds the top-k chunks closest to the query.
func (idx *Indexer) Search(ctx context.Context, query string, k int) ([]store.SearchResult, error) {
	embedding, err := idx.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.store.Search(embedding, k)
}

// Close releases resources.
func (idx *Indexer) Close() error {
	return idx.store.Close()
}
