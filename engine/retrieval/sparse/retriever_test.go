package sparse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/retrieval/sparse"
)

func newIndexed(t *testing.T) *sparse.Retriever {
	t.Helper()
	r := sparse.NewRetriever(nil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	ctx := context.Background()
	docs := []struct {
		id, tenant, platform, text string
	}{
		{"case-1", "t1", "zendesk", "Login throws 500 error after password reset"},
		{"case-2", "t1", "zendesk", "Exported report is empty when filters applied"},
		{"case-3", "t2", "zendesk", "Login throws 500 error after password reset"},
	}
	for _, d := range docs {
		require.NoError(t, r.Index(ctx, retrieval.CollectionCases, d.id, d.tenant, d.platform, d.text, map[string]any{
			"category": "auth",
		}))
	}
	return r
}

func TestRetriever_ShouldNeverReturnOtherTenantsDocuments(t *testing.T) {
	r := newIndexed(t)

	// Exact text of a t1 document, queried as t2: only t2's copy may match.
	results, err := r.Search(context.Background(), retrieval.QueryContext{
		TenantID:   "t2",
		Platform:   "zendesk",
		QueryText:  "Login throws 500 error after password reset",
		Collection: retrieval.CollectionCases,
	}, 10)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, c := range results {
		assert.Equal(t, "case-3", c.ID)
	}
}

func TestRetriever_ShouldRankMatchesAndCarrySnippets(t *testing.T) {
	r := newIndexed(t)

	results, err := r.Search(context.Background(), retrieval.QueryContext{
		TenantID:   "t1",
		Platform:   "zendesk",
		QueryText:  "login error",
		Collection: retrieval.CollectionCases,
	}, 10)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "case-1", results[0].ID)
	assert.Equal(t, 1, results[0].SparseRank)
	assert.Greater(t, results[0].SparseScore, 0.0)
	assert.Contains(t, results[0].Snippet, "Login throws 500 error")
	assert.Equal(t, "auth", results[0].Metadata["category"])
}

func TestRetriever_ShouldReturnZeroMatchesForUnindexedCollection(t *testing.T) {
	r := sparse.NewRetriever(nil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	results, err := r.Search(context.Background(), retrieval.QueryContext{
		TenantID:   "t1",
		QueryText:  "anything",
		Collection: retrieval.CollectionKB,
	}, 10)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_ShouldRejectIndexingWithoutTenant(t *testing.T) {
	r := sparse.NewRetriever(nil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	err := r.Index(context.Background(), retrieval.CollectionCases, "doc-1", "", "", "text", nil)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeValidation))
}

func TestRetriever_ShouldRejectSearchWithoutTenant(t *testing.T) {
	r := newIndexed(t)

	_, err := r.Search(context.Background(), retrieval.QueryContext{
		QueryText:  "login",
		Collection: retrieval.CollectionCases,
	}, 10)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeValidation))
}
