package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/adapter/chunker"
	"pdfqa/internal/adapter/memstore"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
)

func newIngest(t *testing.T, st *memstore.MemoryStore, ex *fakeExtractor) (*IngestUseCase, string) {
	t.Helper()
	wc, err := chunker.NewWindowChunker(1200, 200)
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "uploads")
	return NewIngestUseCase(st, ex, wc, dir, 4, logging.Discard()), dir
}

func pdfRequest(body string) UploadRequest {
	return UploadRequest{Filename: "report.pdf", ContentType: "application/pdf", Body: strings.NewReader(body)}
}

func TestUpload_PageBoundedChunks(t *testing.T) {
	page1 := strings.Repeat("a", 1000) + strings.Repeat("b", 300)
	st := memstore.NewMemoryStore()
	uc, dir := newIngest(t, st, &fakeExtractor{pages: []string{page1, ""}})

	res, err := uc.Upload(context.Background(), pdfRequest("%PDF-1.4 body bytes"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, 1301, res.CharsExtracted)
	assert.Equal(t, 500, utf8.RuneCountInString(res.Preview))

	chunks, err := st.GetChunksByDoc(res.DocID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, page1[:1200], chunks[0].Text)
	assert.Equal(t, page1[1000:1300], chunks[1].Text)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, domain.ChunkUID(res.DocID, i), c.ChunkUID)
		assert.Equal(t, 1, c.PageNumber, "the empty second page yields no chunks")
		assert.Equal(t, res.DocID, c.DocID)
	}

	saved, err := os.ReadFile(filepath.Join(dir, res.DocID+".pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body bytes", string(saved))

	doc, err := st.GetDoc(res.DocID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, 2, doc.TotalChunks)
}

func TestUpload_ChunkIDsRunAcrossPages(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc, _ := newIngest(t, st, &fakeExtractor{pages: []string{"first page", "", "third page", strings.Repeat("x", 2500)}})

	res, err := uc.Upload(context.Background(), pdfRequest("x"))
	require.NoError(t, err)

	chunks, err := st.GetChunksByDoc(res.DocID)
	require.NoError(t, err)

	// "first page", "third page", then 2500 chars in windows at 0, 1000, 2000
	require.Len(t, chunks, 5)
	pages := []int{1, 3, 4, 4, 4}
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, domain.ChunkUID(res.DocID, i), c.ChunkUID)
		assert.Equal(t, pages[i], c.PageNumber)
	}
}

func TestUpload_Validation(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc, dir := newIngest(t, st, &fakeExtractor{pages: []string{"text"}})

	_, err := uc.Upload(context.Background(), UploadRequest{Filename: " ", ContentType: "application/pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrMissingFilename)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Upload(context.Background(), UploadRequest{Filename: "a.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMediaType)

	_, err = uc.Upload(context.Background(), UploadRequest{Filename: "a.pdf", ContentType: "application/x-pdf", Body: strings.NewReader("x")})
	assert.NoError(t, err)

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestUpload_ExtractionFailureRemovesFile(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc, dir := newIngest(t, st, &fakeExtractor{err: errors.New("broken xref")})

	_, err := uc.Upload(context.Background(), pdfRequest("x"))
	assert.ErrorContains(t, err, "broken xref")

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)

	docs, err := st.ListDocs()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpload_ImageOnlyDocument(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc, _ := newIngest(t, st, &fakeExtractor{pages: []string{"", ""}})

	res, err := uc.Upload(context.Background(), pdfRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 0, res.TotalChunks)
	assert.Equal(t, 1, res.CharsExtracted)

	chunks, err := st.GetChunksByDoc(res.DocID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
