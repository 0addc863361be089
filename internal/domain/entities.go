package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FallbackAnswer is returned verbatim when the sources cannot answer a question.
const FallbackAnswer = "I don't know based on the provided sources."

type Document struct {
	ID             string    `json:"doc_id"`
	Filename       string    `json:"filename"`
	Pages          int       `json:"pages"`
	CharsExtracted int       `json:"chars_extracted"`
	Preview        string    `json:"preview"`
	TotalChunks    int       `json:"total_chunks"`
	CreatedAt      time.Time `json:"created_at"`
}

type Chunk struct {
	DocID      string `json:"doc_id"`
	ChunkID    int    `json:"chunk_id"`
	ChunkUID   string `json:"chunk_uid"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// ChunkUID derives the globally unique chunk handle from its document and
// per-document sequence number.
func ChunkUID(docID string, chunkID int) string {
	return fmt.Sprintf("%s_%d", docID, chunkID)
}

// IndexMeta identifies the chunk stored at one row of a vector index.
type IndexMeta struct {
	ChunkUID   string `json:"chunk_uid"`
	ChunkID    int    `json:"chunk_id"`
	PageNumber int    `json:"page_number"`
}

// SearchResult is a retrieved chunk, or a diagnostic record when the index
// row could not be mapped back to a chunk.
type SearchResult struct {
	Score      float64
	ChunkUID   string
	ChunkID    int
	PageNumber int
	Text       string

	Row   int
	Error string
}

// IsDiagnostic reports whether the result is the degraded {score, row, error} form.
func (r SearchResult) IsDiagnostic() bool {
	return r.Error != ""
}

type chunkResultJSON struct {
	Score      float64 `json:"score"`
	ChunkUID   string  `json:"chunk_uid"`
	ChunkID    int     `json:"chunk_id"`
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
}

type diagnosticResultJSON struct {
	Score float64 `json:"score"`
	Row   int     `json:"row"`
	Error string  `json:"error"`
}

func (r SearchResult) MarshalJSON() ([]byte, error) {
	if r.IsDiagnostic() {
		return json.Marshal(diagnosticResultJSON{Score: r.Score, Row: r.Row, Error: r.Error})
	}
	return json.Marshal(chunkResultJSON{
		Score:      r.Score,
		ChunkUID:   r.ChunkUID,
		ChunkID:    r.ChunkID,
		PageNumber: r.PageNumber,
		Text:       r.Text,
	})
}

func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Score      float64 `json:"score"`
		ChunkUID   string  `json:"chunk_uid"`
		ChunkID    int     `json:"chunk_id"`
		PageNumber int     `json:"page_number"`
		Text       string  `json:"text"`
		Row        int     `json:"row"`
		Error      string  `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = SearchResult{
		Score:      raw.Score,
		ChunkUID:   raw.ChunkUID,
		ChunkID:    raw.ChunkID,
		PageNumber: raw.PageNumber,
		Text:       raw.Text,
		Row:        raw.Row,
		Error:      raw.Error,
	}
	return nil
}

type SearchResponse struct {
	DocID   string         `json:"doc_id"`
	Query   string         `json:"query"`
	K       int            `json:"k"`
	Results []SearchResult `json:"results"`
}

type Citation struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

type UploadResult struct {
	DocID          string `json:"doc_id"`
	Pages          int    `json:"pages"`
	CharsExtracted int    `json:"chars_extracted"`
	Preview        string `json:"preview"`
	TotalChunks    int    `json:"total_chunks"`
}

type IndexBuildStats struct {
	DocID              string `json:"doc_id"`
	TotalChunksLoaded  int    `json:"total_chunks_loaded"`
	TotalChunksIndexed int    `json:"total_chunks_indexed"`
	EmbeddingDim       int    `json:"embedding_dim"`
	Generation         string `json:"generation"`
}
