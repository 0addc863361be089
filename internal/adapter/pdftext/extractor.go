// Package pdftext extracts per-page plain text from PDF files.
package pdftext

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/phuslu/log"

	"pdfqa/internal/port"
)

// Extractor reads PDFs with ledongthuc/pdf. Pages whose text cannot be
// decoded (scanned images, broken content streams) come back as "".
type Extractor struct {
	logger *log.Logger
}

var _ port.PageExtractor = (*Extractor)(nil)

func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) ExtractPages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to read pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages[i-1] = e.pageText(reader, i)
	}

	return pages, nil
}

func (e *Extractor) pageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Int("page", num).Str("panic", fmt.Sprint(r)).Msg("page text extraction failed")
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Warn().Int("page", num).Err(err).Msg("page text extraction failed")
		return ""
	}
	return text
}
