package embedder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/engine/retrieval/embedder"
	"github.com/resolvd/resolvd/pkg/config"
)

type countingEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vector
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.vector, nil
}

func embedderCfg() *config.EmbedderConfig {
	return &config.EmbedderConfig{
		Provider:  "openai",
		Model:     "test-model",
		Dimension: 3,
		CacheSize: 16,
	}
}

func TestAdapter_ShouldCacheRepeatedQueries(t *testing.T) {
	impl := &countingEmbedder{vector: []float32{1, 2, 3}}
	adapter, err := embedder.Wrap(embedderCfg(), impl)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := adapter.EmbedQuery(ctx, "password reset loop")
	require.NoError(t, err)
	second, err := adapter.EmbedQuery(ctx, "password reset loop")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, impl.calls)
}

func TestAdapter_ShouldRejectDimensionMismatch(t *testing.T) {
	impl := &countingEmbedder{vector: []float32{1, 2}}
	adapter, err := embedder.Wrap(embedderCfg(), impl)
	require.NoError(t, err)

	_, err = adapter.EmbedQuery(context.Background(), "query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestAdapter_ShouldRejectEmptyQuery(t *testing.T) {
	adapter, err := embedder.Wrap(embedderCfg(), &countingEmbedder{vector: []float32{1, 2, 3}})
	require.NoError(t, err)

	_, err = adapter.EmbedQuery(context.Background(), "   ")

	require.Error(t, err)
}

func TestAdapter_ShouldPropagateProviderErrors(t *testing.T) {
	impl := &countingEmbedder{err: errors.New("quota exceeded")}
	adapter, err := embedder.Wrap(embedderCfg(), impl)
	require.NoError(t, err)

	_, err = adapter.EmbedQuery(context.Background(), "query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
