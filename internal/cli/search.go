package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"pdfqa/internal/domain"
)

var (
	searchDoc   string
	searchQuery string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search an indexed document",
	Long: `Return the chunks of a document most similar to the query, best first.

Examples:
  pdfqa search -d <doc_id> -q "training data"
  pdfqa search -d <doc_id> -q "evaluation metrics" -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchDoc, "doc", "d", "", "document id (required)")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("doc")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	resp, err := a.retrieve.Search(cmd.Context(), searchDoc, searchQuery, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(resp)
	}

	printResults(resp)
	return nil
}

func printResults(resp *domain.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("Found %d results for: %s\n\n", len(resp.Results), resp.Query)
	for i, r := range resp.Results {
		if r.IsDiagnostic() {
			fmt.Printf("--- [%d] row %d (score: %.3f) ---\n", i+1, r.Row, r.Score)
			fmt.Printf("unresolved: %s\n\n", r.Error)
			continue
		}

		fmt.Printf("--- [%d] %s p.%d (score: %.3f) ---\n", i+1, r.ChunkUID, r.PageNumber, r.Score)
		// Truncate long text for display
		text := strings.TrimSpace(r.Text)
		if utf8.RuneCountInString(text) > 500 {
			text = string([]rune(text)[:500]) + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
