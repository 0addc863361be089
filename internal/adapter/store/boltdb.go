package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"pdfqa/internal/domain"
)

var (
	bucketDocs      = []byte("docs")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketStats     = []byte("stats")
	bucketDocChunks = []byte("doc_chunks")
)

// BoltStore persists documents and chunks. Chunk text lives in the blobs
// bucket; doc_chunks keeps each document's chunk_uids in persisted order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketChunks, bucketBlobs, bucketStats, bucketDocChunks}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type docMeta struct {
	Filename       string `json:"filename"`
	Pages          int    `json:"pages"`
	CharsExtracted int    `json:"chars_extracted"`
	Preview        string `json:"preview"`
	TotalChunks    int    `json:"total_chunks"`
	CreatedAt      int64  `json:"created_at"`
}

type chunkMeta struct {
	DocID      string `json:"doc_id"`
	ChunkID    int    `json:"chunk_id"`
	PageNumber int    `json:"page_number"`
}

// PutDocument writes the document record and its whole chunk sequence in a
// single transaction. Chunks previously stored for the document are removed.
func (s *BoltStore) PutDocument(doc domain.Document, chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteChunks(tx, doc.ID); err != nil {
			return err
		}

		meta := docMeta{
			Filename:       doc.Filename,
			Pages:          doc.Pages,
			CharsExtracted: doc.CharsExtracted,
			Preview:        doc.Preview,
			TotalChunks:    doc.TotalChunks,
			CreatedAt:      doc.CreatedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}

		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		uids := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			if chunk.DocID != doc.ID {
				return fmt.Errorf("chunk %s belongs to document %s, not %s", chunk.ChunkUID, chunk.DocID, doc.ID)
			}
			data, err := json.Marshal(chunkMeta{
				DocID:      chunk.DocID,
				ChunkID:    chunk.ChunkID,
				PageNumber: chunk.PageNumber,
			})
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(chunk.ChunkUID), data); err != nil {
				return err
			}
			if err := blobBucket.Put([]byte(chunk.ChunkUID), []byte(chunk.Text)); err != nil {
				return err
			}
			uids = append(uids, chunk.ChunkUID)
		}

		uidData, err := json.Marshal(uids)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocChunks).Put([]byte(doc.ID), uidData)
	})
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = toDocument(id, meta)
		return nil
	})
	return doc, err
}

// ListDocs returns all documents, newest first.
func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, toDocument(string(k), meta))
			return nil
		})
	})
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, err
}

// GetChunksByDoc returns the stored chunk sequence in its persisted order.
func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return fmt.Errorf("chunks for document %s: %w", docID, domain.ErrNotFound)
		}
		var uids []string
		if err := json.Unmarshal(data, &uids); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		chunks = make([]domain.Chunk, 0, len(uids))
		for _, uid := range uids {
			data := chunkBucket.Get([]byte(uid))
			if data == nil {
				return fmt.Errorf("chunk %s listed for document %s is missing", uid, docID)
			}
			var meta chunkMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				return fmt.Errorf("corrupt chunk %s: %w", uid, err)
			}
			chunks = append(chunks, domain.Chunk{
				DocID:      meta.DocID,
				ChunkID:    meta.ChunkID,
				ChunkUID:   uid,
				PageNumber: meta.PageNumber,
				Text:       string(blobBucket.Get([]byte(uid))),
			})
		}
		return nil
	})
	return chunks, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func deleteChunks(tx *bbolt.Tx, docID string) error {
	docChunks := tx.Bucket(bucketDocChunks)
	data := docChunks.Get([]byte(docID))
	if data == nil {
		return nil
	}
	var uids []string
	if err := json.Unmarshal(data, &uids); err != nil {
		return err
	}
	chunkBucket := tx.Bucket(bucketChunks)
	blobBucket := tx.Bucket(bucketBlobs)
	for _, uid := range uids {
		if err := chunkBucket.Delete([]byte(uid)); err != nil {
			return err
		}
		if err := blobBucket.Delete([]byte(uid)); err != nil {
			return err
		}
	}
	return docChunks.Delete([]byte(docID))
}

func toDocument(id string, meta docMeta) domain.Document {
	return domain.Document{
		ID:             id,
		Filename:       meta.Filename,
		Pages:          meta.Pages,
		CharsExtracted: meta.CharsExtracted,
		Preview:        meta.Preview,
		TotalChunks:    meta.TotalChunks,
		CreatedAt:      time.Unix(meta.CreatedAt, 0),
	}
}
