package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdfqa/internal/usecase"
)

var (
	promptDoc      string
	promptQuestion string
	promptTopK     int
	promptOutput   string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render the grounding prompt without calling the model",
	Long: `Search the document for the question and print the exact prompt that
'pdfqa answer' would send to the model. Useful for feeding another LLM by
hand or for inspecting what the model sees.

Examples:
  pdfqa prompt -d <doc_id> -q "What is the conclusion?"
  pdfqa prompt -d <doc_id> -q "What is the conclusion?" -o prompt.txt`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptDoc, "doc", "d", "", "document id (required)")
	promptCmd.Flags().StringVarP(&promptQuestion, "question", "q", "", "question to answer (required)")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "chunks to retrieve (default from config)")
	promptCmd.Flags().StringVarP(&promptOutput, "output", "o", "", "output file (default: stdout)")
	promptCmd.MarkFlagRequired("doc")
	promptCmd.MarkFlagRequired("question")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := cfg.Retrieve.TopK
	if promptTopK > 0 {
		topK = promptTopK
	}

	resp, err := a.retrieve.Search(cmd.Context(), promptDoc, promptQuestion, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	prompt, err := usecase.BuildPrompt(promptQuestion, resp.Results)
	if err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}

	if promptOutput != "" {
		if err := os.WriteFile(promptOutput, []byte(prompt), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Prompt written to %s\n", promptOutput)
		return nil
	}

	fmt.Print(prompt)
	return nil
}
