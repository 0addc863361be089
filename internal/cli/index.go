package cli

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <doc_id>",
	Short: "Build the vector index for a document",
	Long: `Embed the stored chunks of an uploaded document and write its vector
index. An existing index for the document is replaced.

Examples:
  pdfqa index 3f2b8c1e-5d0a-4c6e-9a71-2b7f0c9d4e18`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	docID := args[0]
	cfg := GetConfig()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Indexing %s with %s/%s...\n", docID, cfg.Embedding.Provider, cfg.Embedding.Model)

	// Progress bar is created on the first batch, once the total is known
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progressCallback := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	start := time.Now()
	stats, err := a.index.Build(cmd.Context(), docID, progressCallback)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Chunks loaded:  %d\n", stats.TotalChunksLoaded)
	fmt.Printf("  Chunks indexed: %d\n", stats.TotalChunksIndexed)
	fmt.Printf("  Dimension:      %d\n", stats.EmbeddingDim)
	fmt.Printf("  Generation:     %s\n", stats.Generation)
	fmt.Printf("  Took:           %s\n", formatDuration(time.Since(start)))

	fmt.Printf("\nIndex stored at: %s\n", filepath.Join(cfg.IndexDir(), docID))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
