package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repodex/internal/embedder"
	"repodex/internal/store"
)

var flagTopK int

var (
	resultTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	resultMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	resultDistStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	resultBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed codebase with a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		dbPath := viper.GetString("db")
		if dbPath == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dbPath = filepath.Join(wd, ".repodex", "index.db")
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("index not found at %s\nRun 'repodex index <path>' first to build the index", dbPath)
		}

		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer st.Close()

		emb := embedder.NewOllama(viper.GetString("ollama"), viper.GetString("model"))
		vec, err := emb.EmbedSingle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}

		results, err := st.Search(vec, flagTopK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if len(results) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		for i, r := range results {
			header := fmt.Sprintf("%d. %s", i+1, r.FilePath)
			meta := fmt.Sprintf("%s %s · lines %d–%d · %s",
				r.Chunk.Kind, r.Chunk.Name, r.Chunk.StartLine, r.Chunk.EndLine, r.Language)
			if len(r.Chunk.Parents) > 0 {
				meta += " · in " + strings.Join(r.Chunk.Parents, ".")
			}
			fmt.Println(resultTitleStyle.Render(header))
			fmt.Printf("   %s  %s\n", resultMetaStyle.Render(meta),
				resultDistStyle.Render(fmt.Sprintf("distance %.4f", r.Distance)))
			fmt.Println(resultBodyStyle.Render(snippet(r.Chunk.Content, 8)))
			fmt.Println()
		}
		return nil
	},
}

// snippet returns the first n lines of text.
func snippet(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "top", "k", 10, "number of results to return")
	rootCmd.AddCommand(searchCmd)
}
