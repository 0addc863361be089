// Package logging builds the structured logger shared by the CLI, the HTTP
// server and the use cases.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"

	"pdfqa/config"
)

// New returns a logger writing to stderr in the configured format and level.
func New(cfg config.LoggingConfig) *log.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *log.Logger {
	logger := &log.Logger{
		Level: log.ParseLevel(cfg.Level),
	}

	if cfg.Format == "json" {
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{
			ColorOutput:    isTerminal(w),
			EndWithMessage: true,
			Writer:         w,
		}
	}

	return logger
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
