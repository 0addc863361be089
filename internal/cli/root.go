package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"pdfqa/config"
	"pdfqa/internal/logging"
)

var (
	cfgFile  string
	rootDir  string
	logLevel string
	cfg      *config.Config
	logger   *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pdfqa",
	Short: "Question answering over uploaded PDF documents",
	Long: `pdfqa ingests PDF documents, indexes their text as vectors and answers
questions about a document with citations to the chunks it used.

Typical flow:
  pdfqa upload "papers/**/*.pdf"
  pdfqa index <doc_id>
  pdfqa answer -d <doc_id> -q "What is the main result?"
  pdfqa serve`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Determine root directory
		if rootDir == "" {
			var err error
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		absRoot, err := filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("failed to resolve root directory: %w", err)
		}
		rootDir = absRoot

		if err := config.LoadEnv(rootDir); err != nil {
			return err
		}

		// Load configuration
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		// Relative data directories are resolved against the root directory
		if !filepath.IsAbs(cfg.Storage.DataDir) {
			cfg.Storage.DataDir = filepath.Join(rootDir, cfg.Storage.DataDir)
		}

		logger = logging.New(cfg.Logging)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: pdfqa.yaml in root directory)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "dir", "", "root directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

// GetRootDir returns the root directory.
func GetRootDir() string {
	return rootDir
}
