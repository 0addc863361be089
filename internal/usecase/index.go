package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phuslu/log"

	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/adapter/store"
	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

// ProgressFunc is called after each embedded batch.
type ProgressFunc func(done, total int)

// IndexUseCase builds a document's vector index from its stored chunks.
type IndexUseCase struct {
	chunks        port.ChunkStore
	indexes       port.IndexStore
	provider      *embedding.Provider
	minChunkChars int
	batchSize     int
	logger        *log.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	chunks port.ChunkStore,
	indexes port.IndexStore,
	provider *embedding.Provider,
	minChunkChars int,
	batchSize int,
	logger *log.Logger,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &IndexUseCase{
		chunks:        chunks,
		indexes:       indexes,
		provider:      provider,
		minChunkChars: minChunkChars,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Build embeds every chunk long enough to be useful, and replaces the
// document's index and meta. Row i of the index is meta[i]. A document
// without stored chunks is ErrNotFound; one whose chunks are all filtered
// out, or that has none (image-only PDFs), is ErrNoContent.
func (u *IndexUseCase) Build(ctx context.Context, docID string, progress ProgressFunc) (*domain.IndexBuildStats, error) {
	start := time.Now()

	chunks, err := u.chunks.GetChunksByDoc(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	var texts []string
	var meta []domain.IndexMeta
	for _, c := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(c.Text)) < u.minChunkChars {
			continue
		}
		texts = append(texts, c.Text)
		meta = append(meta, domain.IndexMeta{
			ChunkUID:   c.ChunkUID,
			ChunkID:    c.ChunkID,
			PageNumber: c.PageNumber,
		})
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("document %s: %w", docID, domain.ErrNoContent)
	}

	dim, err := u.provider.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	index, err := store.NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(texts); i += u.batchSize {
		end := min(i+u.batchSize, len(texts))

		vecs, err := u.provider.EmbedMany(ctx, texts[i:end], embedding.IndexNormalize)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", i, end, err)
		}
		if err := index.Add(vecs); err != nil {
			return nil, err
		}

		if progress != nil {
			progress(end, len(texts))
		}
	}

	generation, err := u.indexes.Save(docID, index, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	stats := &domain.IndexBuildStats{
		DocID:              docID,
		TotalChunksLoaded:  len(chunks),
		TotalChunksIndexed: index.Len(),
		EmbeddingDim:       dim,
		Generation:         generation,
	}

	u.logger.Info().
		Str("doc_id", docID).
		Int("chunks_loaded", stats.TotalChunksLoaded).
		Int("chunks_indexed", stats.TotalChunksIndexed).
		Int("dim", dim).
		Str("generation", generation).
		Dur("duration", time.Since(start)).
		Msg("index built")

	return stats, nil
}
