package port

import (
	"context"

	"pdfqa/internal/domain"
)

// Retriever searches one document's index.
type Retriever interface {
	Search(ctx context.Context, docID, query string, k int) (*domain.SearchResponse, error)
}
