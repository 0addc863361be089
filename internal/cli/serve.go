package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pdfqa/internal/server"
)

var (
	serveAddr   string
	serveWarmup bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve upload, index, search and answer over HTTP.

Examples:
  pdfqa serve
  pdfqa serve --addr :9000 --warmup`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWarmup, "warmup", false, "load the embedding model before accepting requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	answerer, err := a.answerer(ctx)
	if err != nil {
		return err
	}

	if serveWarmup {
		if err := a.provider.Warmup(ctx); err != nil {
			return fmt.Errorf("warmup failed: %w", err)
		}
	}

	srv := server.New(server.Deps{
		Ingest:   a.ingest,
		Index:    a.index,
		Retrieve: a.retrieve,
		Answer:   answerer,
	}, cfg.Server, cfg.Retrieve.TopK, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
