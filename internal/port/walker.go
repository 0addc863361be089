package port

import "context"

// PageExtractor returns the raw text of every page of a PDF, in page order.
// Pages without extractable text are returned as empty strings.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

type FileWalker interface {
	Walk(patterns []string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
