package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

const (
	indexFileName = "index.flat"
	metaFileName  = "meta.json"

	indexFormatVersion uint32 = 1
)

var indexMagic = [8]byte{'P', 'D', 'F', 'Q', 'A', 'F', 'L', 'T'}

// Load retries when it observes an index and meta from different builds,
// which happens while a rebuild is between its two renames.
var (
	loadAttempts   = 5
	loadRetryDelay = 20 * time.Millisecond
)

// FileIndexStore keeps one directory per document under root, holding the
// binary vector index and its JSON row metadata.
type FileIndexStore struct {
	root string
}

var _ port.IndexStore = (*FileIndexStore)(nil)

func NewFileIndexStore(root string) *FileIndexStore {
	return &FileIndexStore{root: root}
}

type metaFile struct {
	Generation string             `json:"generation"`
	Rows       []domain.IndexMeta `json:"rows"`
}

// Save writes meta.json and then index.flat, each through a temporary file
// renamed into place. Both carry the same generation id.
func (s *FileIndexStore) Save(docID string, index port.VectorIndex, meta []domain.IndexMeta) (string, error) {
	dir, err := s.docDir(docID)
	if err != nil {
		return "", err
	}
	if len(meta) != index.Len() {
		return "", fmt.Errorf("index has %d rows but meta has %d", index.Len(), len(meta))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create index directory: %w", err)
	}

	gen := uuid.New()

	err = writeFileAtomic(filepath.Join(dir, metaFileName), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metaFile{Generation: gen.String(), Rows: meta})
	})
	if err != nil {
		return "", fmt.Errorf("failed to write index meta: %w", err)
	}

	err = writeFileAtomic(filepath.Join(dir, indexFileName), func(w io.Writer) error {
		return encodeIndex(w, gen, index)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write index: %w", err)
	}

	return gen.String(), nil
}

// Load reads a document's index and meta. A missing index is ErrNotFound; a
// missing meta file yields nil Meta. If the two files keep disagreeing on
// generation, ErrIndexMismatch is returned.
func (s *FileIndexStore) Load(docID string) (*port.IndexArtifacts, error) {
	dir, err := s.docDir(docID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < loadAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(loadRetryDelay)
		}

		index, gen, err := readIndex(filepath.Join(dir, indexFileName))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("index for document %s: %w", docID, domain.ErrNotFound)
			}
			return nil, err
		}

		mf, err := readMeta(filepath.Join(dir, metaFileName))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &port.IndexArtifacts{Index: index, Generation: gen}, nil
			}
			return nil, err
		}

		// Legacy meta (a bare row list) has no generation to compare.
		if mf.Generation != "" && mf.Generation != gen {
			continue
		}

		return &port.IndexArtifacts{Index: index, Meta: mf.Rows, Generation: gen}, nil
	}

	return nil, fmt.Errorf("document %s: %w", docID, domain.ErrIndexMismatch)
}

// Exists reports whether docID has an index on disk.
func (s *FileIndexStore) Exists(docID string) bool {
	dir, err := s.docDir(docID)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, indexFileName))
	return err == nil
}

func (s *FileIndexStore) docDir(docID string) (string, error) {
	if docID == "" || docID == "." || docID == ".." || strings.ContainsAny(docID, `/\`) {
		return "", fmt.Errorf("%w: bad document id %q", domain.ErrInvalidInput, docID)
	}
	return filepath.Join(s.root, docID), nil
}

func encodeIndex(w io.Writer, gen uuid.UUID, index port.VectorIndex) error {
	header := struct {
		Magic      [8]byte
		Version    uint32
		Generation [16]byte
		Dim        uint32
		Count      uint64
	}{
		Magic:      indexMagic,
		Version:    indexFormatVersion,
		Generation: gen,
		Dim:        uint32(index.Dim()),
		Count:      uint64(index.Len()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	for row := 0; row < index.Len(); row++ {
		if err := binary.Write(w, binary.LittleEndian, index.Vector(row)); err != nil {
			return err
		}
	}
	return nil
}

func readIndex(path string) (*FlatIndex, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var header struct {
		Magic      [8]byte
		Version    uint32
		Generation [16]byte
		Dim        uint32
		Count      uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, "", fmt.Errorf("corrupt index header: %w", err)
	}
	if header.Magic != indexMagic {
		return nil, "", fmt.Errorf("%s is not a pdfqa index file", path)
	}
	if header.Version != indexFormatVersion {
		return nil, "", fmt.Errorf("unsupported index format version %d", header.Version)
	}

	index, err := NewFlatIndex(int(header.Dim))
	if err != nil {
		return nil, "", fmt.Errorf("corrupt index header: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, "", err
	}
	// The body must hold exactly Count rows of Dim float32 values.
	body := uint64(info.Size() - int64(binary.Size(header)))
	rowBytes := uint64(header.Dim) * 4
	if header.Count > body/rowBytes || header.Count*rowBytes != body {
		return nil, "", fmt.Errorf("corrupt index header: %d rows of dim %d do not match %d body bytes", header.Count, header.Dim, body)
	}

	index.data = make([]float32, int(header.Count)*int(header.Dim))
	if err := binary.Read(r, binary.LittleEndian, index.data); err != nil {
		return nil, "", fmt.Errorf("corrupt index body: %w", err)
	}

	return index, uuid.UUID(header.Generation).String(), nil
}

func readMeta(path string) (*metaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mf metaFile
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &mf.Rows); err != nil {
			return nil, fmt.Errorf("corrupt index meta: %w", err)
		}
		return &mf, nil
	}

	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("corrupt index meta: %w", err)
	}
	return &mf, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new file.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
