package store

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
)

func buildIndex(t *testing.T, vectors [][]float32) *FlatIndex {
	t.Helper()
	idx, err := NewFlatIndex(len(vectors[0]))
	require.NoError(t, err)
	require.NoError(t, idx.Add(vectors))
	return idx
}

func sampleMeta() []domain.IndexMeta {
	return []domain.IndexMeta{
		{ChunkUID: "doc_0", ChunkID: 0, PageNumber: 1},
		{ChunkUID: "doc_2", ChunkID: 2, PageNumber: 2},
	}
}

func TestFileIndexStore_SaveLoad(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	idx := buildIndex(t, [][]float32{{1, 0, 0}, {0, 0.6, 0.8}})

	gen, err := s.Save("doc", idx, sampleMeta())
	require.NoError(t, err)
	assert.NotEmpty(t, gen)

	art, err := s.Load("doc")
	require.NoError(t, err)
	assert.Equal(t, gen, art.Generation)
	assert.Equal(t, sampleMeta(), art.Meta)
	require.Equal(t, 2, art.Index.Len())
	assert.Equal(t, 3, art.Index.Dim())
	assert.Equal(t, []float32{0, 0.6, 0.8}, art.Index.Vector(1))

	hits, err := art.Index.Search([]float32{0, 0.6, 0.8}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, hits[0].Row)
}

func TestFileIndexStore_RebuildReplaces(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())

	first, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), sampleMeta())
	require.NoError(t, err)

	second, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}}), sampleMeta()[:1])
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	art, err := s.Load("doc")
	require.NoError(t, err)
	assert.Equal(t, 1, art.Index.Len())
	assert.Len(t, art.Meta, 1)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(s.root, "doc"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileIndexStore_MissingIndex(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Load("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileIndexStore_MissingMetaIsLegacy(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), sampleMeta())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(s.root, "doc", metaFileName)))

	art, err := s.Load("doc")
	require.NoError(t, err)
	assert.Nil(t, art.Meta)
	assert.Equal(t, 2, art.Index.Len())
}

func TestFileIndexStore_BareListMeta(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), sampleMeta())
	require.NoError(t, err)

	data, err := json.Marshal(sampleMeta())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "doc", metaFileName), data, 0644))

	art, err := s.Load("doc")
	require.NoError(t, err)
	assert.Equal(t, sampleMeta(), art.Meta)
}

func TestFileIndexStore_GenerationMismatch(t *testing.T) {
	oldAttempts, oldDelay := loadAttempts, loadRetryDelay
	loadAttempts, loadRetryDelay = 2, 0
	t.Cleanup(func() { loadAttempts, loadRetryDelay = oldAttempts, oldDelay })

	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), sampleMeta())
	require.NoError(t, err)

	// meta from a different build
	data, err := json.Marshal(metaFile{Generation: "00000000-0000-0000-0000-000000000000", Rows: sampleMeta()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "doc", metaFileName), data, 0644))

	_, err = s.Load("doc")
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
}

func TestFileIndexStore_RowCountMismatch(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}}), sampleMeta())
	assert.Error(t, err)
}

func TestFileIndexStore_RejectsPathDocID(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Load("../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFileIndexStore_CorruptIndex(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(s.root, "doc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "doc", indexFileName), []byte("garbage"), 0644))

	_, err := s.Load("doc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestFileIndexStore_HeaderCountLargerThanFile(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), []domain.IndexMeta{{ChunkUID: "doc_0"}, {ChunkUID: "doc_1"}})
	require.NoError(t, err)

	path := filepath.Join(s.root, "doc", indexFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Count sits after magic, version, generation and dim.
	binary.LittleEndian.PutUint64(data[32:40], 1<<60)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = s.Load("doc")
	require.Error(t, err)
	assert.ErrorContains(t, err, "corrupt index header")
}

func TestFileIndexStore_TruncatedBody(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}, {0, 1}}), []domain.IndexMeta{{ChunkUID: "doc_0"}, {ChunkUID: "doc_1"}})
	require.NoError(t, err)

	path := filepath.Join(s.root, "doc", indexFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	_, err = s.Load("doc")
	require.Error(t, err)
	assert.ErrorContains(t, err, "corrupt index header")
}

func TestFileIndexStore_Exists(t *testing.T) {
	s := NewFileIndexStore(t.TempDir())
	assert.False(t, s.Exists("doc"))
	assert.False(t, s.Exists("../doc"))

	_, err := s.Save("doc", buildIndex(t, [][]float32{{1, 0}}), []domain.IndexMeta{{ChunkUID: "doc_0"}})
	require.NoError(t, err)
	assert.True(t, s.Exists("doc"))
}
