package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"

	"pdfqa/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

// IndexNormalize is the normalization setting used for both index vectors and
// query vectors; inner product on unit vectors is cosine similarity.
const IndexNormalize = true

const normEpsilon = 1e-12

// Factory builds the underlying embedder on first use.
type Factory func(ctx context.Context) (port.Embedder, error)

// Provider owns the embedding model. The model is loaded once, lazily or via
// Warmup, and then shared by all callers. A failed load is retried on the next
// call. It is safe for concurrent use.
type Provider struct {
	factory Factory
	timeout time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	embedder port.Embedder
}

func NewProvider(factory Factory, timeout time.Duration, logger *log.Logger) *Provider {
	return &Provider{
		factory: factory,
		timeout: timeout,
		logger:  logger,
	}
}

// NewProviderFromConfig returns a Provider whose factory builds the backend
// selected in cfg.
func NewProviderFromConfig(cfg config.EmbeddingConfig, logger *log.Logger) *Provider {
	return NewProvider(func(ctx context.Context) (port.Embedder, error) {
		return NewEmbedder(ctx, cfg)
	}, cfg.Timeout, logger)
}

// NewEmbedder constructs the embedding backend named by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimension)
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAICompatibleEmbedder(keyEnv(cfg.APIKeyEnv, "OPENAI_API_KEY"), cfg.Model, baseURL)
	case "gemini":
		return NewGeminiEmbedder(ctx, keyEnv(cfg.APIKeyEnv, "GEMINI_API_KEY"), cfg.Model, cfg.Dimension)
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func keyEnv(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

// Warmup loads the model now instead of on the first embedding call.
func (p *Provider) Warmup(ctx context.Context) error {
	_, err := p.get(ctx)
	return err
}

func (p *Provider) get(ctx context.Context) (port.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.embedder != nil {
		return p.embedder, nil
	}

	start := time.Now()
	e, err := p.factory(ctx)
	if err == nil && e == nil {
		err = fmt.Errorf("factory returned no embedder")
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("embedding model failed to load")
		return nil, fmt.Errorf("embedding model unavailable: %w", err)
	}

	p.embedder = e
	p.logger.Info().
		Str("model", e.ModelName()).
		Int("dim", e.Dimension()).
		Dur("duration", time.Since(start)).
		Msg("embedding model loaded")
	return e, nil
}

// ModelName returns the loaded model's name, loading it if necessary.
func (p *Provider) ModelName(ctx context.Context) (string, error) {
	e, err := p.get(ctx)
	if err != nil {
		return "", err
	}
	return e.ModelName(), nil
}

// Dimension returns the loaded model's vector dimension.
func (p *Provider) Dimension(ctx context.Context) (int, error) {
	e, err := p.get(ctx)
	if err != nil {
		return 0, err
	}
	return e.Dimension(), nil
}

// EmbedMany embeds texts in order. An empty input yields an empty result.
func (p *Provider) EmbedMany(ctx context.Context, texts []string, normalize bool) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e, err := p.get(ctx)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}

	dim := e.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d dimension mismatch: expected %d, got %d", i, dim, len(v))
		}
		if normalize {
			vecs[i] = Normalize(v)
		}
	}

	return vecs, nil
}

// EmbedOne embeds a single non-blank text.
func (p *Provider) EmbedOne(ctx context.Context, text string, normalize bool) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}
	vecs, err := p.EmbedMany(ctx, []string{text}, normalize)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Normalize returns v scaled to unit L2 length. Norms below 1e-12 are
// clamped, so a zero vector stays zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Max(math.Sqrt(sum), normEpsilon)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
