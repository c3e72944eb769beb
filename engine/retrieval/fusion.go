package retrieval

import "sort"

const (
	// DefaultRRFK is the rank offset in the 1/(k+rank) contribution.
	DefaultRRFK = 60
	// DefaultFusedLimit bounds the fused set handed to the reranker.
	DefaultFusedLimit = 20
)

// Fuse merges the dense and sparse candidate lists with Reciprocal Rank
// Fusion. The output is the union of both input id sets, deduplicated by id,
// sorted by descending fused score and truncated to limit. Ranks are taken
// from list position (1-based), not from any score carried on the inputs.
//
// Ties are broken deterministically: a dense-present candidate sorts before a
// sparse-only one; two dense-present candidates sort by better dense rank;
// two sparse-only candidates keep their sparse order.
func Fuse(dense, sparse []Candidate, k, limit int) []Candidate {
	if k <= 0 {
		k = DefaultRRFK
	}
	if limit <= 0 {
		limit = DefaultFusedLimit
	}
	merged := make(map[string]*Candidate, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))
	for i := range dense {
		c := dense[i]
		c.DenseRank = i + 1
		c.SparseRank = 0
		merged[c.ID] = &c
		order = append(order, c.ID)
	}
	for i := range sparse {
		src := sparse[i]
		if existing, ok := merged[src.ID]; ok {
			existing.SparseRank = i + 1
			existing.SparseScore = src.SparseScore
			if existing.Snippet == "" {
				existing.Snippet = src.Snippet
			}
			mergeMetadata(existing, src.Metadata)
			continue
		}
		c := src
		c.SparseRank = i + 1
		c.DenseRank = 0
		merged[c.ID] = &c
		order = append(order, c.ID)
	}
	fused := make([]Candidate, 0, len(order))
	for _, id := range order {
		c := merged[id]
		c.FusedScore = 0
		if c.InDense() {
			c.FusedScore += 1 / float64(k+c.DenseRank)
		}
		if c.InSparse() {
			c.FusedScore += 1 / float64(k+c.SparseRank)
		}
		fused = append(fused, *c)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		a, b := &fused[i], &fused[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		switch {
		case a.InDense() && b.InDense():
			return a.DenseRank < b.DenseRank
		case a.InDense():
			return true
		case b.InDense():
			return false
		default:
			return a.SparseRank < b.SparseRank
		}
	})
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

func mergeMetadata(dst *Candidate, src map[string]any) {
	if len(src) == 0 {
		return
	}
	if dst.Metadata == nil {
		dst.Metadata = make(map[string]any, len(src))
	}
	for key, val := range src {
		if _, ok := dst.Metadata[key]; !ok {
			dst.Metadata[key] = val
		}
	}
}
