package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pdfqa/internal/domain"
)

var (
	answerDoc      string
	answerQuestion string
	answerTopK     int
	answerJSON     bool
	answerSources  bool
)

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Answer a question about a document with citations",
	Long: `Search the document for the question, then ask the configured model to
answer using only the retrieved chunks. Citations are checked against the
retrieved chunks.

Examples:
  pdfqa answer -d <doc_id> -q "What dataset was used?"
  pdfqa answer -d <doc_id> -q "Who are the authors?" --sources --json`,
	RunE: runAnswer,
}

func init() {
	rootCmd.AddCommand(answerCmd)
	answerCmd.Flags().StringVarP(&answerDoc, "doc", "d", "", "document id (required)")
	answerCmd.Flags().StringVarP(&answerQuestion, "question", "q", "", "question to answer (required)")
	answerCmd.Flags().IntVarP(&answerTopK, "top-k", "k", 0, "chunks to retrieve (default from config)")
	answerCmd.Flags().BoolVar(&answerJSON, "json", false, "output as JSON")
	answerCmd.Flags().BoolVar(&answerSources, "sources", false, "also print the retrieved chunks")
	answerCmd.MarkFlagRequired("doc")
	answerCmd.MarkFlagRequired("question")
}

func runAnswer(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	answerer, err := a.answerer(ctx)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if answerTopK > 0 {
		topK = answerTopK
	}

	resp, err := a.retrieve.Search(ctx, answerDoc, answerQuestion, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	answer, err := answerer.Answer(ctx, answerQuestion, resp.Results)
	if err != nil {
		var gerr *domain.GuardrailError
		if errors.As(err, &gerr) && gerr.Raw != "" {
			logger.Debug().Str("kind", string(gerr.Kind)).Str("raw", gerr.Raw).Msg("rejected model output")
		}
		return fmt.Errorf("answer failed: %w", err)
	}

	if answerJSON {
		if answerSources {
			return printJSON(struct {
				Search *domain.SearchResponse `json:"search"`
				Answer *domain.Answer         `json:"answer"`
			}{resp, answer})
		}
		return printJSON(answer)
	}

	if answerSources {
		printResults(resp)
	}

	fmt.Println(answer.Answer)
	if len(answer.Citations) > 0 {
		fmt.Printf("\nCitations:\n")
		for _, c := range answer.Citations {
			fmt.Printf("  [%s] p.%d: %s\n", c.ChunkID, c.Page, c.Snippet)
		}
	}
	return nil
}
