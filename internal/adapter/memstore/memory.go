// Package memstore provides in-memory ChunkStore and IndexStore
// implementations for tests and throwaway runs.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
}

var _ port.ChunkStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
	}
}

func (s *MemoryStore) PutDocument(doc domain.Document, chunks []domain.Chunk) error {
	for _, chunk := range chunks {
		if chunk.DocID != doc.ID {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", chunk.ChunkUID, chunk.DocID, doc.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uid := range s.docChunks[doc.ID] {
		delete(s.chunks, uid)
	}

	s.docs[doc.ID] = doc
	uids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		s.chunks[chunk.ChunkUID] = chunk
		uids = append(uids, chunk.ChunkUID)
	}
	s.docChunks[doc.ID] = uids
	return nil
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

// ListDocs returns all documents, newest first.
func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids, ok := s.docChunks[docID]
	if !ok {
		return nil, fmt.Errorf("chunks for document %s: %w", docID, domain.ErrNotFound)
	}
	chunks := make([]domain.Chunk, 0, len(uids))
	for _, uid := range uids {
		if chunk, ok := s.chunks[uid]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// DeleteChunk removes a single chunk while leaving the document's chunk
// list untouched, simulating a store that lost a record.
func (s *MemoryStore) DeleteChunk(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, uid)
}

func (s *MemoryStore) Close() error {
	return nil
}

// IndexStore keeps index artifacts in memory. Saved indexes are stored by
// reference.
type IndexStore struct {
	mu        sync.RWMutex
	artifacts map[string]*port.IndexArtifacts
}

var _ port.IndexStore = (*IndexStore)(nil)

func NewIndexStore() *IndexStore {
	return &IndexStore{artifacts: make(map[string]*port.IndexArtifacts)}
}

func (s *IndexStore) Save(docID string, index port.VectorIndex, meta []domain.IndexMeta) (string, error) {
	if len(meta) != index.Len() {
		return "", fmt.Errorf("index has %d rows but meta has %d", index.Len(), len(meta))
	}
	gen := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[docID] = &port.IndexArtifacts{
		Index:      index,
		Meta:       append([]domain.IndexMeta(nil), meta...),
		Generation: gen,
	}
	return gen, nil
}

func (s *IndexStore) Load(docID string) (*port.IndexArtifacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	art, ok := s.artifacts[docID]
	if !ok {
		return nil, fmt.Errorf("index for document %s: %w", docID, domain.ErrNotFound)
	}
	copied := *art
	return &copied, nil
}

// DropMeta removes the row metadata of a saved index, leaving it in the
// shape of artifacts written before metadata existed.
func (s *IndexStore) DropMeta(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if art, ok := s.artifacts[docID]; ok {
		art.Meta = nil
	}
}

// SetMeta replaces the row metadata of a saved index.
func (s *IndexStore) SetMeta(docID string, meta []domain.IndexMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if art, ok := s.artifacts[docID]; ok {
		art.Meta = meta
	}
}
