package usecase

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/adapter/store"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
)

func TestBuild_FiltersShortChunksAndAlignsMeta(t *testing.T) {
	p := newPipeline()
	pages := []string{topicPages[0], "too short", topicPages[1], "   padded but short   ", topicPages[2]}
	res := ingestPages(t, p.chunks, pages)

	var progress [][2]int
	stats, err := p.indexer().Build(context.Background(), res.DocID, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.Equal(t, res.DocID, stats.DocID)
	assert.Equal(t, 5, stats.TotalChunksLoaded)
	assert.Equal(t, 3, stats.TotalChunksIndexed)
	assert.Equal(t, 256, stats.EmbeddingDim)
	assert.NotEmpty(t, stats.Generation)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)

	art, err := p.indexes.Load(res.DocID)
	require.NoError(t, err)
	require.Equal(t, 3, art.Index.Len())
	require.Len(t, art.Meta, 3)
	assert.Equal(t, stats.Generation, art.Generation)

	wantIDs := []int{0, 2, 4}
	for row, m := range art.Meta {
		assert.Equal(t, wantIDs[row], m.ChunkID)
		assert.Equal(t, domain.ChunkUID(res.DocID, wantIDs[row]), m.ChunkUID)
		assert.Equal(t, wantIDs[row]+1, m.PageNumber)
	}

	// vectors are unit length
	for row := 0; row < art.Index.Len(); row++ {
		var norm float64
		for _, x := range art.Index.Vector(row) {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-4)
	}
}

func TestBuild_NoContent(t *testing.T) {
	p := newPipeline()
	res := ingestPages(t, p.chunks, []string{"tiny", "also tiny"})

	_, err := p.indexer().Build(context.Background(), res.DocID, nil)
	assert.ErrorIs(t, err, domain.ErrNoContent)

	_, err = p.indexes.Load(res.DocID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuild_UnknownDocument(t *testing.T) {
	p := newPipeline()
	_, err := p.indexer().Build(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuild_DocumentWithoutChunks(t *testing.T) {
	p := newPipeline()
	res := ingestPages(t, p.chunks, []string{"", ""})
	require.Equal(t, 0, res.TotalChunks)

	_, err := p.indexer().Build(context.Background(), res.DocID, nil)
	assert.ErrorIs(t, err, domain.ErrNoContent)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, p.embedder.texts.Load())
}

func TestBuild_RebuildReplaces(t *testing.T) {
	p := newPipeline()
	res := ingestPages(t, p.chunks, topicPages)

	first, err := p.indexer().Build(context.Background(), res.DocID, nil)
	require.NoError(t, err)
	second, err := p.indexer().Build(context.Background(), res.DocID, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, first.TotalChunksIndexed, second.TotalChunksIndexed)

	art, err := p.indexes.Load(res.DocID)
	require.NoError(t, err)
	assert.Equal(t, second.Generation, art.Generation)
	assert.Equal(t, 3, art.Index.Len())
}

func TestBuild_EmbeddingFailure(t *testing.T) {
	p := newPipeline()
	res := ingestPages(t, p.chunks, topicPages)

	uc := NewIndexUseCase(p.chunks, p.indexes, failingProvider(), 30, 64, logging.Discard())
	_, err := uc.Build(context.Background(), res.DocID, nil)
	assert.ErrorContains(t, err, "model offline")
}

func TestBuild_OnDiskArtifacts(t *testing.T) {
	p := newPipeline()
	res := ingestPages(t, p.chunks, []string{strings.Repeat("policy text ", 150), topicPages[1]})

	indexes := store.NewFileIndexStore(filepath.Join(t.TempDir(), "index"))
	uc := NewIndexUseCase(p.chunks, indexes, p.provider, 30, 64, logging.Discard())

	stats, err := uc.Build(context.Background(), res.DocID, nil)
	require.NoError(t, err)

	art, err := indexes.Load(res.DocID)
	require.NoError(t, err)
	assert.Equal(t, stats.Generation, art.Generation)
	assert.Equal(t, stats.TotalChunksIndexed, art.Index.Len())
	assert.Len(t, art.Meta, stats.TotalChunksIndexed)
}
