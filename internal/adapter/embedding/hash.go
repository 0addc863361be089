package embedding

import (
	"context"
	"hash/fnv"

	"pdfqa/internal/adapter/analyzer"
)

// HashEmbedder is a deterministic, offline embedder. Each stemmed term and
// its character trigrams are hashed into one of dimension buckets with a
// signed count, so texts sharing vocabulary end up close in inner product.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, w := range e.tokenizer.Tokenize(text) {
		e.add(vec, w)
		runes := []rune(" " + w + " ")
		for j := 0; j+3 <= len(runes); j++ {
			e.add(vec, string(runes[j:j+3]))
		}
	}
	return vec
}

func (e *HashEmbedder) add(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
