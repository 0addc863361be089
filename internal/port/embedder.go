package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is an exact similarity index over inner product.
// Row order is the insertion order and is stable until the index is rebuilt.
type VectorIndex interface {
	// Add appends vectors; each must have Dim() components.
	Add(vectors [][]float32) error

	// Search returns the k best rows for the query. When k exceeds Len(),
	// the missing rows are reported with row -1.
	Search(query []float32, k int) ([]VectorHit, error)

	// Vector returns the stored vector at row.
	Vector(row int) []float32

	// Len returns the number of stored vectors.
	Len() int

	// Dim returns the vector dimension.
	Dim() int
}

// VectorHit is one row returned by a vector search.
type VectorHit struct {
	Row   int     // Row in the index, -1 when there is no match
	Score float64 // Inner product (cosine similarity for unit vectors)
}
