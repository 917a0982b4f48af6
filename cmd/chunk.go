package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repodex/internal/chunker"
	"repodex/internal/chunker/languages"
	"repodex/internal/index"
)

var (
	flagChunkOut string
	flagDryRun   bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <path>",
	Short: "Chunk a codebase to JSONL without embedding or storing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		outDir := flagChunkOut
		if outDir == "" {
			outDir = filepath.Join(root, ".repodex", "out")
		}

		reg := chunker.NewRegistry()
		languages.RegisterDefaults(reg)
		engine := chunker.NewEngine(reg, chunkingConfig())

		if flagDryRun {
			fmt.Printf("Dry run: would chunk %s into %s\n", root, outDir)
			fmt.Printf("  Config: %+v\n", engine.Config())
			return nil
		}

		fmt.Printf("Chunking %s...\n", root)
		start := time.Now()

		stats, err := index.ChunkRun(cmd.Context(), root, outDir, engine, reg, viper.GetInt("workers"))
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		printRunStats(stats)
		fmt.Printf("  Output:  %s\n", outDir)
		return nil
	},
}

func printRunStats(s chunker.Stats) {
	fmt.Printf("  Folders: %d scanned\n", s.FoldersScanned)
	fmt.Printf("  Files:   %d total, %d parsed, %d failed\n", s.FilesTotal, s.FilesParsed, s.FilesFailed)
	fmt.Printf("  Chunks:  %d (avg %d tokens)\n", s.TotalChunks, s.AvgChunkTokens)
	for lang, n := range s.ChunksByLanguage {
		fmt.Printf("    %-12s %d\n", lang, n)
	}
}

func init() {
	chunkCmd.Flags().StringVar(&flagChunkOut, "out", "", "output directory (default <project>/.repodex/out)")
	chunkCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report configuration without processing files")
	rootCmd.AddCommand(chunkCmd)
}
