package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repodex/internal/chunker"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "repodex",
	Short: "Build and query a semantic index of a source-code repository",
	Long: `repodex splits source files into AST-aware chunks, embeds them, and
answers natural-language queries by nearest-neighbor search over the
stored vectors.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./repodex.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (default <project>/.repodex/index.db)")
	rootCmd.PersistentFlags().String("ollama", "http://localhost:11434", "ollama base URL")
	rootCmd.PersistentFlags().String("model", "nomic-embed-text", "embedding model")
	rootCmd.PersistentFlags().Int("workers", 0, "parallel workers (default: number of CPUs)")
	rootCmd.PersistentFlags().Int("max-tokens", 25000, "chunk token upper bound")
	rootCmd.PersistentFlags().Int("min-tokens", 50, "chunk token lower bound (advisory)")
	rootCmd.PersistentFlags().Int("overlap", 500, "target overlap tokens between adjacent chunks")
	rootCmd.PersistentFlags().String("nested", "outer", "nested-span policy: outer or inner")

	for flag, key := range map[string]string{
		"db":         "db",
		"ollama":     "ollama",
		"model":      "model",
		"workers":    "workers",
		"max-tokens": "max_tokens",
		"min-tokens": "min_tokens",
		"overlap":    "overlap_tokens",
		"nested":     "nested",
	} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
}

// initConfig loads repodex.yaml (or --config) and REPODEX_* environment
// variables. Precedence: flag > env > file > default.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("repodex")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("REPODEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: read config: %v\n", err)
		}
	}
}

// chunkingConfig assembles the engine configuration from the resolved
// settings.
func chunkingConfig() chunker.Config {
	return chunker.Config{
		MaxTokens:     viper.GetInt("max_tokens"),
		MinTokens:     viper.GetInt("min_tokens"),
		OverlapTokens: viper.GetInt("overlap_tokens"),
		Nested:        chunker.NestedPolicy(viper.GetString("nested")),
	}
}
