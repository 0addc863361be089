package cli

import (
	"context"
	"fmt"

	"pdfqa/config"
	"pdfqa/internal/adapter/cache"
	"pdfqa/internal/adapter/chunker"
	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/adapter/llm"
	"pdfqa/internal/adapter/pdftext"
	"pdfqa/internal/adapter/store"
	"pdfqa/internal/usecase"
)

// app holds the stores and use cases shared by the commands.
type app struct {
	cfg      *config.Config
	chunks   *store.BoltStore
	indexes  *store.FileIndexStore
	provider *embedding.Provider

	ingest   *usecase.IngestUseCase
	index    *usecase.IndexUseCase
	retrieve *usecase.RetrieveUseCase
}

// openApp opens the chunk store, runs pending schema migrations and builds the
// use cases. The embedding model is loaded on first use.
func openApp(cfg *config.Config) (*app, error) {
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	st, err := store.NewBoltStore(cfg.ChunkDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.ConfigChanged {
		logger.Warn().Str("reason", migration.Reason).Msg("chunking configuration differs from the stored documents")
	}
	if migration.NeedsMigration || migration.ConfigChanged {
		if migration.NeedsMigration {
			logger.Info().
				Int("from", migration.OldVersion).
				Int("to", migration.NewVersion).
				Msg(migration.Reason)
		}
		if err := st.Migrate(cfg); err != nil {
			st.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	chk, err := chunker.NewWindowChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		st.Close()
		return nil, err
	}

	indexes := store.NewFileIndexStore(cfg.IndexDir())
	provider := embedding.NewProviderFromConfig(cfg.Embedding, logger)

	queryCache := cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)

	return &app{
		cfg:      cfg,
		chunks:   st,
		indexes:  indexes,
		provider: provider,
		ingest: usecase.NewIngestUseCase(
			st,
			pdftext.NewExtractor(logger),
			chk,
			cfg.UploadDir(),
			cfg.Storage.UploadBufferBytes,
			logger,
		),
		index:    usecase.NewIndexUseCase(st, indexes, provider, cfg.Index.MinChunkChars, cfg.Index.BatchSize, logger),
		retrieve: usecase.NewRetrieveUseCase(st, indexes, provider, queryCache, logger),
	}, nil
}

// answerer builds the answer use case. The generative model client is only
// created by commands that need it, so a missing API key does not block
// upload, index or search.
func (a *app) answerer(ctx context.Context) (*usecase.AnswerUseCase, error) {
	client, err := llm.New(ctx, a.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return usecase.NewAnswerUseCase(client, a.cfg.LLM.Timeout, logger), nil
}

func (a *app) Close() error {
	return a.chunks.Close()
}
