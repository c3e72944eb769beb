package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/resolvd/resolvd/engine/core"
)

// DefaultFinalTopK bounds the result returned to the workflow.
const DefaultFinalTopK = 5

// Rerank re-scores the fused shortlist with a pairwise scorer and returns the
// candidates sorted by descending rerank score, truncated to topK. The
// reranked order replaces the fused order entirely; fused scores are kept on
// the candidates for inspection but no longer influence ordering.
func Rerank(ctx context.Context, scorer Scorer, query string, candidates []Candidate, topK int) ([]Candidate, error) {
	if topK <= 0 {
		topK = DefaultFinalTopK
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	passages := make([]string, len(candidates))
	for i := range candidates {
		passages[i] = candidates[i].Snippet
	}
	scores, err := scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, core.NewError(core.ErrCodeRerankUnavailable, "rerank scorer failed", err)
	}
	if len(scores) != len(candidates) {
		return nil, core.NewError(
			core.ErrCodeRerankUnavailable,
			fmt.Sprintf("scorer returned %d scores for %d candidates", len(scores), len(candidates)),
			nil,
		)
	}
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].RerankScore = scores[i]
		ranked[i].Reranked = true
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// Truncate caps a candidate list at topK without reordering. Used when the
// reranker is unavailable and the fused order stands.
func Truncate(candidates []Candidate, topK int) []Candidate {
	if topK <= 0 {
		topK = DefaultFinalTopK
	}
	if len(candidates) > topK {
		return candidates[:topK]
	}
	return candidates
}
