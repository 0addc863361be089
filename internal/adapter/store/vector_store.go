package store

import (
	"fmt"
	"math"
	"sort"

	"pdfqa/internal/port"
)

// NoMatchScore is reported with row -1 when a search asks for more rows than
// the index holds.
const NoMatchScore = -math.MaxFloat32

// FlatIndex is an exact inner-product index. Vectors are kept row-major in a
// single slice; rows are numbered in insertion order.
type FlatIndex struct {
	dim  int
	data []float32
}

var _ port.VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be > 0, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Add appends vectors in order.
func (x *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, x.dim, len(v))
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return nil
}

// Search scores every row against the query and returns the k best, highest
// first. Ties keep row order. Missing rows (k > Len) are filled with row -1.
func (x *FlatIndex) Search(query []float32, k int) ([]port.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be > 0, got %d", k)
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dim, len(query))
	}

	n := x.Len()
	hits := make([]port.VectorHit, n)
	for row := 0; row < n; row++ {
		hits[row] = port.VectorHit{Row: row, Score: innerProduct(query, x.Vector(row))}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k < n {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, port.VectorHit{Row: -1, Score: NoMatchScore})
	}

	return hits, nil
}

// Vector returns the vector stored at row. The slice aliases index storage.
func (x *FlatIndex) Vector(row int) []float32 {
	return x.data[row*x.dim : (row+1)*x.dim]
}

func (x *FlatIndex) Len() int {
	return len(x.data) / x.dim
}

func (x *FlatIndex) Dim() int {
	return x.dim
}

func innerProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
