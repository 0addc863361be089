package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pdfqa/internal/adapter/chunker"
	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/adapter/memstore"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
	"pdfqa/internal/port"
)

type fakeExtractor struct {
	pages []string
	err   error
}

func (f *fakeExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type fakeLLM struct {
	output      string
	err         error
	calls       atomic.Int32
	prompt      string
	hadDeadline bool
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.prompt = prompt
	_, f.hadDeadline = ctx.Deadline()
	return f.output, f.err
}

func (f *fakeLLM) ModelName() string { return "fake-llm" }

// countingEmbedder wraps the hash embedder and counts texts embedded.
type countingEmbedder struct {
	inner *embedding.HashEmbedder
	texts atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int32(len(texts)))
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func newTestProvider(e port.Embedder) *embedding.Provider {
	return embedding.NewProvider(func(context.Context) (port.Embedder, error) {
		return e, nil
	}, 5*time.Second, logging.Discard())
}

func failingProvider() *embedding.Provider {
	return embedding.NewProvider(func(context.Context) (port.Embedder, error) {
		return nil, errors.New("model offline")
	}, time.Second, logging.Discard())
}

var topicPages = []string{
	"Refund policy. Customers may request a full refund within thirty days of purchase by contacting support.",
	"Shipping times. Orders ship within two business days and arrive in five to seven days by ground freight.",
	"Warranty terms. Hardware carries a one year limited warranty covering manufacturing defects only.",
}

// ingestPages runs pages through the real chunker and ingest use case.
func ingestPages(t *testing.T, st port.ChunkStore, pages []string) *domain.UploadResult {
	t.Helper()
	wc, err := chunker.NewWindowChunker(1200, 200)
	require.NoError(t, err)

	uc := NewIngestUseCase(st, &fakeExtractor{pages: pages}, wc, t.TempDir(), 0, logging.Discard())
	res, err := uc.Upload(context.Background(), UploadRequest{
		Filename:    "test.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.4 fake"),
	})
	require.NoError(t, err)
	return res
}

type pipeline struct {
	chunks   *memstore.MemoryStore
	indexes  *memstore.IndexStore
	embedder *countingEmbedder
	provider *embedding.Provider
}

func newPipeline() *pipeline {
	e := &countingEmbedder{inner: embedding.NewHashEmbedder(256)}
	return &pipeline{
		chunks:   memstore.NewMemoryStore(),
		indexes:  memstore.NewIndexStore(),
		embedder: e,
		provider: newTestProvider(e),
	}
}

func (p *pipeline) indexer() *IndexUseCase {
	return NewIndexUseCase(p.chunks, p.indexes, p.provider, 30, 2, logging.Discard())
}
