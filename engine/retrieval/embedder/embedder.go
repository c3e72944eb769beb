package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/resolvd/resolvd/pkg/config"
)

// Embedder is the query embedding port consumed by the dense retriever.
// Document vectors are assumed pre-computed at ingestion time; only the query
// path goes through this interface.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Adapter wraps a langchaingo embedder and caches query vectors. Embeddings
// are deterministic for a fixed model version, so an LRU keyed by text hash
// is safe.
type Adapter struct {
	provider  string
	model     string
	dimension int
	impl      embeddings.Embedder
	cacheMu   sync.Mutex
	cache     *lru.Cache[string, []float32]
}

// New constructs a provider-backed embedder from configuration.
func New(cfg *config.EmbedderConfig) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	impl, err := buildProviderEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo embedder.
func Wrap(cfg *config.EmbedderConfig, impl embeddings.Embedder) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("embedder dimension must be greater than zero")
	}
	adapter := &Adapter{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder cache: %w", err)
		}
		adapter.cache = cache
	}
	return adapter, nil
}

func buildProviderEmbedder(cfg *config.EmbedderConfig) (embeddings.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		llm, err := openai.New(openai.WithEmbeddingModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("embedder provider openai: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		return nil, fmt.Errorf("unsupported embedder provider %q", cfg.Provider)
	}
}

// Dimension returns the configured vector width.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// EmbedQuery embeds a single query string, consulting the cache first.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embedder: query text is required")
	}
	key := cacheKey(a.provider, a.model, text)
	if a.cache != nil {
		a.cacheMu.Lock()
		vector, ok := a.cache.Get(key)
		a.cacheMu.Unlock()
		if ok {
			return append([]float32(nil), vector...), nil
		}
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedder %s/%s: %w", a.provider, a.model, err)
	}
	if len(vector) != a.dimension {
		return nil, fmt.Errorf("embedder %s/%s: got %d dimensions, want %d", a.provider, a.model, len(vector), a.dimension)
	}
	if a.cache != nil {
		a.cacheMu.Lock()
		a.cache.Add(key, append([]float32(nil), vector...))
		a.cacheMu.Unlock()
	}
	return vector, nil
}

func cacheKey(provider, model, text string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
