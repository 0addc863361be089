package pdftext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/logging"
)

// writePDF renders one page per entry; an empty entry is a blank page.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	path := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

func TestExtractor_PerPageText(t *testing.T) {
	path := writePDF(t, "Refunds", "", "Shipping")

	pages, err := NewExtractor(logging.Discard()).ExtractPages(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Contains(t, pages[0], "Refunds")
	assert.Empty(t, strings.TrimSpace(pages[1]))
	assert.Contains(t, pages[2], "Shipping")
}

func TestExtractor_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0644))

	_, err := NewExtractor(logging.Discard()).ExtractPages(context.Background(), path)
	assert.Error(t, err)
}

func TestExtractor_MissingFile(t *testing.T) {
	_, err := NewExtractor(logging.Discard()).ExtractPages(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestExtractor_Canceled(t *testing.T) {
	path := writePDF(t, "one")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(logging.Discard()).ExtractPages(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
