package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

const (
	previewRunes = 500
	sampleRunes  = 200
)

var acceptedContentTypes = map[string]bool{
	"application/pdf":   true,
	"application/x-pdf": true,
}

// UploadRequest is one PDF to ingest. Body is streamed to disk and never
// held in memory as a whole.
type UploadRequest struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// IngestUseCase stores uploaded PDFs, extracts their pages and persists the
// page-bounded chunk sequence.
type IngestUseCase struct {
	store     port.ChunkStore
	extractor port.PageExtractor
	chunker   port.TextChunker
	uploadDir string
	bufSize   int
	logger    *log.Logger
	now       func() time.Time
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	store port.ChunkStore,
	extractor port.PageExtractor,
	chunker port.TextChunker,
	uploadDir string,
	bufSize int,
	logger *log.Logger,
) *IngestUseCase {
	if bufSize <= 0 {
		bufSize = 1024 * 1024
	}
	return &IngestUseCase{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		uploadDir: uploadDir,
		bufSize:   bufSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload validates the request, saves the file as <doc_id>.pdf, and stores
// the document with its chunks in one transaction.
func (u *IngestUseCase) Upload(ctx context.Context, req UploadRequest) (*domain.UploadResult, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, domain.ErrMissingFilename
	}
	if !acceptedContentTypes[req.ContentType] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, req.ContentType)
	}

	start := time.Now()
	docID := uuid.NewString()
	path := filepath.Join(u.uploadDir, docID+".pdf")

	written, err := u.save(path, req.Body)
	if err != nil {
		return nil, err
	}

	pages, err := u.extractor.ExtractPages(ctx, path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks, err := u.chunkPages(docID, pages)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	fullText := strings.Join(pages, "\n")
	doc := domain.Document{
		ID:             docID,
		Filename:       req.Filename,
		Pages:          len(pages),
		CharsExtracted: utf8.RuneCountInString(fullText),
		Preview:        truncateRunes(fullText, previewRunes),
		TotalChunks:    len(chunks),
		CreatedAt:      u.now().UTC(),
	}

	if err := u.store.PutDocument(doc, chunks); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	u.logChunkStats(doc, chunks, written, time.Since(start))

	return &domain.UploadResult{
		DocID:          doc.ID,
		Pages:          doc.Pages,
		CharsExtracted: doc.CharsExtracted,
		Preview:        doc.Preview,
		TotalChunks:    doc.TotalChunks,
	}, nil
}

func (u *IngestUseCase) save(path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(u.uploadDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.CopyBuffer(f, body, make([]byte, u.bufSize))
	if err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to save upload: %w", err)
	}

	return written, nil
}

// chunkPages splits every page on its own. Chunk ids run across the whole
// document in page order.
func (u *IngestUseCase) chunkPages(docID string, pages []string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for i, page := range pages {
		parts, err := u.chunker.Split(page)
		if err != nil {
			return nil, err
		}
		for _, text := range parts {
			id := len(chunks)
			chunks = append(chunks, domain.Chunk{
				DocID:      docID,
				ChunkID:    id,
				ChunkUID:   domain.ChunkUID(docID, id),
				PageNumber: i + 1,
				Text:       text,
			})
		}
	}
	return chunks, nil
}

func (u *IngestUseCase) logChunkStats(doc domain.Document, chunks []domain.Chunk, size int64, elapsed time.Duration) {
	entry := u.logger.Info().
		Str("doc_id", doc.ID).
		Str("filename", doc.Filename).
		Int64("bytes", size).
		Int("pages", doc.Pages).
		Int("chars", doc.CharsExtracted).
		Int("chunks", len(chunks)).
		Dur("duration", elapsed)

	if len(chunks) > 0 {
		total := 0
		for _, c := range chunks {
			total += utf8.RuneCountInString(c.Text)
		}
		entry = entry.
			Float64("avg_chunk_len", float64(total)/float64(len(chunks))).
			Str("sample", truncateRunes(chunks[0].Text, sampleRunes))
	}

	entry.Msg("document ingested")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
