package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"pdfqa/internal/adapter/cache"
	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

// RetrieveUseCase handles search over one document's index.
type RetrieveUseCase struct {
	chunks   port.ChunkStore
	indexes  port.IndexStore
	provider *embedding.Provider
	cache    *cache.QueryCache // optional
	logger   *log.Logger
}

var _ port.Retriever = (*RetrieveUseCase)(nil)

// NewRetrieveUseCase creates a new retrieve use case. queryCache may be nil.
func NewRetrieveUseCase(
	chunks port.ChunkStore,
	indexes port.IndexStore,
	provider *embedding.Provider,
	queryCache *cache.QueryCache,
	logger *log.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		chunks:   chunks,
		indexes:  indexes,
		provider: provider,
		cache:    queryCache,
		logger:   logger,
	}
}

// Search returns up to k chunks of docID most similar to query, best first.
// A row that cannot be mapped back to a chunk is reported as a diagnostic
// result instead of failing the search.
func (u *RetrieveUseCase) Search(ctx context.Context, docID, query string, k int) (*domain.SearchResponse, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", domain.ErrInvalidK, k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyInput
	}

	art, err := u.indexes.Load(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	chunks, err := u.chunks.GetChunksByDoc(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	qvec, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := art.Index.Search(qvec, k)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	if art.Meta == nil {
		u.logger.Warn().
			Str("doc_id", docID).
			Msg("index has no meta; mapping rows by position")
	}

	byUID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byUID[c.ChunkUID] = c
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Row < 0 {
			continue
		}
		results = append(results, resolveHit(hit, art.Meta, chunks, byUID))
	}

	return &domain.SearchResponse{
		DocID:   docID,
		Query:   query,
		K:       k,
		Results: results,
	}, nil
}

func (u *RetrieveUseCase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	model, err := u.provider.ModelName(ctx)
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		if vec, ok := u.cache.Get(model, query); ok {
			return vec, nil
		}
	}

	vec, err := u.provider.EmbedOne(ctx, query, embedding.IndexNormalize)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if u.cache != nil {
		u.cache.Put(model, query, vec)
	}
	return vec, nil
}

func resolveHit(hit port.VectorHit, meta []domain.IndexMeta, chunks []domain.Chunk, byUID map[string]domain.Chunk) domain.SearchResult {
	diagnostic := func(msg string) domain.SearchResult {
		return domain.SearchResult{Score: hit.Score, Row: hit.Row, Error: msg}
	}

	var chunk domain.Chunk
	if meta != nil {
		if hit.Row >= len(meta) {
			return diagnostic(fmt.Sprintf("row %d out of range (meta has %d rows)", hit.Row, len(meta)))
		}
		c, ok := byUID[meta[hit.Row].ChunkUID]
		if !ok {
			return diagnostic(fmt.Sprintf("chunk_uid %s not found in document chunks", meta[hit.Row].ChunkUID))
		}
		chunk = c
	} else {
		if hit.Row >= len(chunks) {
			return diagnostic(fmt.Sprintf("row %d out of range (document has %d chunks)", hit.Row, len(chunks)))
		}
		chunk = chunks[hit.Row]
	}

	return domain.SearchResult{
		Score:      hit.Score,
		ChunkUID:   chunk.ChunkUID,
		ChunkID:    chunk.ChunkID,
		PageNumber: chunk.PageNumber,
		Text:       chunk.Text,
		Row:        hit.Row,
	}
}
