package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pdfqa/internal/adapter/fs"
	"pdfqa/internal/domain"
	"pdfqa/internal/port"
	"pdfqa/internal/usecase"
)

var (
	uploadExcludes []string
	uploadJobs     int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <glob...>",
	Short: "Ingest PDF files",
	Long: `Extract, chunk and store every PDF matching the given paths or glob
patterns. Patterns support ** for recursive matching.

Examples:
  pdfqa upload report.pdf
  pdfqa upload "papers/**/*.pdf" --exclude "**/drafts/**"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringSliceVar(&uploadExcludes, "exclude", nil, "glob patterns to skip")
	uploadCmd.Flags().IntVarP(&uploadJobs, "jobs", "j", 0, "parallel uploads (default: server.workers)")
}

type uploadOutcome struct {
	path   string
	result *domain.UploadResult
	err    error
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	files, err := fs.NewWalker(uploadExcludes).Walk(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files matched %v", args)
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs := uploadJobs
	if jobs <= 0 {
		jobs = cfg.Server.Workers
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Uploading[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var mu sync.Mutex
	outcomes := make([]uploadOutcome, 0, len(files))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for _, file := range files {
		g.Go(func() error {
			result, err := uploadFile(ctx, a.ingest, file)

			mu.Lock()
			outcomes = append(outcomes, uploadOutcome{path: file.Path, result: result, err: err})
			bar.Add(1)
			mu.Unlock()

			// One bad file does not stop the others
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].path < outcomes[j].path
	})

	failed := 0
	fmt.Printf("\nUpload complete:\n")
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Printf("  FAILED  %s: %v\n", filepath.Base(o.path), o.err)
			continue
		}
		fmt.Printf("  %s  %s (%d pages, %d chunks)\n", o.result.DocID, filepath.Base(o.path), o.result.Pages, o.result.TotalChunks)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(outcomes))
	}
	return nil
}

func uploadFile(ctx context.Context, ingest *usecase.IngestUseCase, file port.FileInfo) (*domain.UploadResult, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ingest.Upload(ctx, usecase.UploadRequest{
		Filename:    filepath.Base(file.Path),
		ContentType: "application/pdf",
		Body:        f,
	})
}
