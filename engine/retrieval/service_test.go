package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
)

type stubSearcher struct {
	candidates []retrieval.Candidate
	err        error
	block      bool
}

func (s *stubSearcher) Search(ctx context.Context, _ retrieval.QueryContext, topN int) ([]retrieval.Candidate, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	out := s.candidates
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return append([]retrieval.Candidate(nil), out...), nil
}

func validQuery() retrieval.QueryContext {
	return retrieval.QueryContext{
		TenantID:   "acme",
		Platform:   "zendesk",
		QueryText:  "password reset loop",
		Collection: retrieval.CollectionCases,
	}
}

func TestService_ShouldRejectMissingTenantBeforeSearching(t *testing.T) {
	service, err := retrieval.NewService(&stubSearcher{}, &stubSearcher{}, nil, retrieval.Settings{})
	require.NoError(t, err)

	query := validQuery()
	query.TenantID = ""
	_, err = service.Retrieve(context.Background(), query)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeValidation))
}

func TestService_ShouldRejectUnknownCollection(t *testing.T) {
	service, err := retrieval.NewService(&stubSearcher{}, &stubSearcher{}, nil, retrieval.Settings{})
	require.NoError(t, err)

	query := validQuery()
	query.Collection = "archive"
	_, err = service.Retrieve(context.Background(), query)

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeValidation))
}

func TestService_ShouldDegradeToDenseWhenSparseFails(t *testing.T) {
	dense := &stubSearcher{candidates: candidates("d1", "d2", "d3")}
	sparse := &stubSearcher{err: errors.New("connection refused")}
	service, err := retrieval.NewService(dense, sparse, nil, retrieval.Settings{FinalTopK: 5})
	require.NoError(t, err)

	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)
	assert.False(t, result.Complete)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "sparse retrieval degraded")
	for _, c := range result.Candidates {
		assert.True(t, c.InDense())
		assert.False(t, c.InSparse())
	}
}

func TestService_ShouldReturnEmptyResultWhenBothSourcesFail(t *testing.T) {
	dense := &stubSearcher{err: errors.New("dense store down")}
	sparse := &stubSearcher{err: errors.New("sparse store down")}
	service, err := retrieval.NewService(dense, sparse, nil, retrieval.Settings{})
	require.NoError(t, err)

	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.False(t, result.Complete)
	assert.Len(t, result.Warnings, 2)
}

func TestService_ShouldCancelSlowSourceAtSharedDeadline(t *testing.T) {
	dense := &stubSearcher{candidates: candidates("d1")}
	sparse := &stubSearcher{block: true}
	service, err := retrieval.NewService(dense, sparse, nil, retrieval.Settings{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, result.Candidates, 1)
	assert.False(t, result.Complete)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "timed out")
}

func TestService_ShouldFallBackToFusedOrderWhenScorerFails(t *testing.T) {
	dense := &stubSearcher{candidates: candidates("d1", "d2")}
	sparse := &stubSearcher{candidates: candidates("s1")}
	scorer := &mapScorer{err: errors.New("scorer offline")}
	service, err := retrieval.NewService(dense, sparse, scorer, retrieval.Settings{FinalTopK: 5})
	require.NoError(t, err)

	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)
	// Fused order survives: d1 and s1 tie on 1/(k+1) with dense winning.
	assert.Equal(t, "d1", result.Candidates[0].ID)
	assert.Equal(t, "s1", result.Candidates[1].ID)
	assert.Equal(t, "d2", result.Candidates[2].ID)
	assert.True(t, result.Complete)
	require.Len(t, result.Warnings, 1)
	assert.True(t, strings.HasPrefix(result.Warnings[0], "rerank unavailable"))
}

func TestService_ShouldApplyRerankOrderOverFusion(t *testing.T) {
	dense := &stubSearcher{candidates: candidates("A", "B")}
	sparse := &stubSearcher{candidates: candidates("C")}
	scorer := &mapScorer{scores: map[string]float64{
		"snippet A": 0.2,
		"snippet B": 0.9,
		"snippet C": 0.5,
	}}
	service, err := retrieval.NewService(dense, sparse, scorer, retrieval.Settings{FinalTopK: 5})
	require.NoError(t, err)

	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)
	assert.Equal(t, "B", result.Candidates[0].ID)
	assert.Equal(t, "C", result.Candidates[1].ID)
	assert.Equal(t, "A", result.Candidates[2].ID)
	assert.True(t, result.Complete)
	assert.Empty(t, result.Warnings)
}

func TestService_ShouldReturnCompleteEmptyResultOnZeroMatches(t *testing.T) {
	service, err := retrieval.NewService(&stubSearcher{}, &stubSearcher{}, nil, retrieval.Settings{})
	require.NoError(t, err)

	result, err := service.Retrieve(context.Background(), validQuery())

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.True(t, result.Complete)
	assert.Empty(t, result.Warnings)
}
