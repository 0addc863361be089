package chunker

import (
	"fmt"

	"pdfqa/internal/domain"
)

// Split cuts text into windows of chunkSize characters whose starts are
// chunkSize-overlap apart. The last window may be shorter. Offsets count
// runes, so a window can end inside a word but never inside a UTF-8 sequence.
// The empty string yields no windows.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be greater than 0", domain.ErrInvalidChunkParams)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be >= 0 and < chunk_size", domain.ErrInvalidChunkParams)
	}

	runes := []rune(text)
	stride := chunkSize - overlap

	chunks := make([]string, 0, len(runes)/stride+1)
	for start := 0; start < len(runes); start += stride {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks, nil
}

// WindowChunker applies Split with fixed parameters.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if _, err := Split("", size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Split(text string) ([]string, error) {
	return Split(text, c.size, c.overlap)
}
