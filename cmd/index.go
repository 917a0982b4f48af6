package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repodex/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a codebase for semantic search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		dbPath := viper.GetString("db")
		if dbPath == "" {
			dbPath = filepath.Join(root, ".repodex", "index.db")
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}

		idx, err := index.New(index.Config{
			DBPath:    dbPath,
			OllamaURL: viper.GetString("ollama"),
			Model:     viper.GetString("model"),
			Workers:   viper.GetInt("workers"),
			Chunking:  chunkingConfig(),
		})
		if err != nil {
			return err
		}
		defer idx.Close()

		fmt.Printf("Indexing %s...\n", root)
		start := time.Now()

		stats, err := idx.Index(cmd.Context(), root, nil)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:   %d total, %d indexed, %d skipped\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped)
			fmt.Printf("  Chunks:  %d stored (%d embeddings re-used)\n",
				stats.ChunksTotal, stats.ChunksReused)
			if stats.Manifest.FilesFailed > 0 {
				fmt.Printf("  Parse failures: %d (see parse_errors.log)\n", stats.Manifest.FilesFailed)
			}
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
