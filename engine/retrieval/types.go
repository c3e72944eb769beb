package retrieval

import (
	"context"
	"strings"

	"github.com/resolvd/resolvd/engine/core"
)

// Collection names the two document populations the engine searches.
type Collection string

const (
	// CollectionCases holds resolved historical tickets.
	CollectionCases Collection = "cases"
	// CollectionKB holds procedural knowledge-base entries.
	CollectionKB Collection = "kb"
)

// QueryContext carries everything a retrieval call needs. It is immutable for
// the duration of the call. TenantID is mandatory: there is no default tenant
// and no ambient tenant state anywhere in the engine.
type QueryContext struct {
	TenantID   string
	Platform   string
	QueryText  string
	Collection Collection
}

// Validate rejects queries before any retrieval work starts.
func (q *QueryContext) Validate() error {
	if strings.TrimSpace(q.TenantID) == "" {
		return core.NewError(core.ErrCodeValidation, "tenant id is required", nil)
	}
	if strings.TrimSpace(q.QueryText) == "" {
		return core.NewError(core.ErrCodeValidation, "query text is required", nil)
	}
	if q.Collection != CollectionCases && q.Collection != CollectionKB {
		return core.NewError(core.ErrCodeValidation, "unknown collection "+string(q.Collection), nil)
	}
	return nil
}

// Candidate is one retrieved document with the scores it accumulates on its
// way through the pipeline. Ranks are 1-based; zero means the candidate did
// not appear in that source's list.
type Candidate struct {
	ID          string
	Snippet     string
	Metadata    map[string]any
	DenseRank   int
	DenseScore  float64
	SparseRank  int
	SparseScore float64
	FusedScore  float64
	RerankScore float64
	Reranked    bool
}

// InDense reports whether the candidate appeared in the dense source list.
func (c *Candidate) InDense() bool { return c.DenseRank > 0 }

// InSparse reports whether the candidate appeared in the sparse source list.
func (c *Candidate) InSparse() bool { return c.SparseRank > 0 }

// RankedResult is the final ordered candidate set for one retrieval call.
// Complete is false when a source degraded and the result may be missing
// evidence that source would have contributed. An empty result with
// Complete=true means the stores genuinely held no matches.
type RankedResult struct {
	Candidates []Candidate
	Complete   bool
	Warnings   []string
}

// Empty returns a complete result with no candidates.
func Empty() *RankedResult {
	return &RankedResult{Complete: true}
}

// SearchResults groups the per-collection evidence gathered for one workflow
// run. A side that was skipped or degraded holds an explicit empty result,
// never nil, once its node has run.
type SearchResults struct {
	SimilarCases *RankedResult
	KBProcedures *RankedResult
}

// Searcher is the contract shared by the dense and sparse retrievers: an
// ordered candidate list, best first, with the tenant filter applied inside
// the underlying store. Implementations must distinguish "zero matches"
// (empty list, nil error) from "source unavailable" (non-nil error).
type Searcher interface {
	Search(ctx context.Context, query QueryContext, topN int) ([]Candidate, error)
}

// Scorer scores (query, passage) pairs for reranking. It returns one score
// per passage, in input order.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}
