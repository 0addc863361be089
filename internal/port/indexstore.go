package port

import (
	"pdfqa/internal/domain"
)

// ChunkStore persists documents and their ordered chunk sequences.
type ChunkStore interface {
	// PutDocument stores the document record and its full chunk sequence,
	// replacing anything stored for the same document.
	PutDocument(doc domain.Document, chunks []domain.Chunk) error

	GetDoc(id string) (domain.Document, error)

	ListDocs() ([]domain.Document, error)

	// GetChunksByDoc returns the chunks in persisted order.
	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	Close() error
}

// IndexArtifacts is a loaded vector index together with its row metadata.
// Meta is nil for artifacts written before metadata existed.
type IndexArtifacts struct {
	Index      VectorIndex
	Meta       []domain.IndexMeta
	Generation string
}

// IndexStore persists per-document vector indexes.
type IndexStore interface {
	Save(docID string, index VectorIndex, meta []domain.IndexMeta) (generation string, err error)

	Load(docID string) (*IndexArtifacts, error)
}
