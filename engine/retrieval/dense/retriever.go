package dense

import (
	"context"
	"errors"
	"fmt"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/retrieval/embedder"
)

// CollectionSpec maps a logical collection to its store-side name and the
// named vector fields it exposes. DefaultField is the slot queried when the
// caller does not pick one explicitly.
type CollectionSpec struct {
	Name         string
	Fields       []string
	DefaultField string
}

// DefaultCollections returns the built-in collection layout: resolved cases
// expose symptom/cause/resolution facets, KB entries expose intent/procedure.
func DefaultCollections() map[retrieval.Collection]CollectionSpec {
	return map[retrieval.Collection]CollectionSpec{
		retrieval.CollectionCases: {
			Name:         "cases",
			Fields:       []string{"symptom", "cause", "resolution"},
			DefaultField: "symptom",
		},
		retrieval.CollectionKB: {
			Name:         "kb",
			Fields:       []string{"intent", "procedure"},
			DefaultField: "intent",
		},
	}
}

// Retriever embeds the query and searches a named-vector collection with the
// tenant filter applied inside the store. The same query embedding is
// compared against whichever vector field is requested; embedding the query
// once per semantic facet is possible behind the same interface.
type Retriever struct {
	store       Store
	embed       embedder.Embedder
	collections map[retrieval.Collection]CollectionSpec
}

// NewRetriever builds the dense retriever. A nil collections map selects
// DefaultCollections.
func NewRetriever(store Store, embed embedder.Embedder, collections map[retrieval.Collection]CollectionSpec) (*Retriever, error) {
	if store == nil {
		return nil, errors.New("dense: store is required")
	}
	if embed == nil {
		return nil, errors.New("dense: embedder is required")
	}
	if collections == nil {
		collections = DefaultCollections()
	}
	return &Retriever{store: store, embed: embed, collections: collections}, nil
}

// Search implements retrieval.Searcher against the collection's default
// vector field.
func (r *Retriever) Search(ctx context.Context, query retrieval.QueryContext, topN int) ([]retrieval.Candidate, error) {
	spec, ok := r.collections[query.Collection]
	if !ok {
		return nil, core.NewError(core.ErrCodeValidation, "unknown collection "+string(query.Collection), nil)
	}
	return r.SearchField(ctx, query, spec.DefaultField, topN)
}

// SearchField searches a specific named vector field of the collection.
func (r *Retriever) SearchField(
	ctx context.Context,
	query retrieval.QueryContext,
	field string,
	topN int,
) ([]retrieval.Candidate, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	spec, ok := r.collections[query.Collection]
	if !ok {
		return nil, core.NewError(core.ErrCodeValidation, "unknown collection "+string(query.Collection), nil)
	}
	if !specHasField(spec, field) {
		return nil, core.NewError(core.ErrCodeValidation,
			fmt.Sprintf("collection %s has no vector field %q", spec.Name, field), nil)
	}
	if topN <= 0 {
		topN = retrieval.DefaultTopN
	}
	vector, err := r.embed.EmbedQuery(ctx, query.QueryText)
	if err != nil {
		return nil, core.NewError(core.ErrCodeRetrieval, "query embedding failed", err)
	}
	filter := map[string]string{"tenant_id": query.TenantID}
	if query.Platform != "" {
		filter["platform"] = query.Platform
	}
	matches, err := r.store.Search(ctx, spec.Name, field, vector, filter, topN)
	if err != nil {
		return nil, core.NewError(core.ErrCodeRetrieval, "dense store search failed", err)
	}
	return candidatesFromMatches(matches), nil
}

// Index writes a document's named vectors and payload. The tenant id is
// stamped into the payload so the search-side filter can match it.
func (r *Retriever) Index(
	ctx context.Context,
	collection retrieval.Collection,
	tenantID string,
	points []Point,
) error {
	spec, ok := r.collections[collection]
	if !ok {
		return core.NewError(core.ErrCodeValidation, "unknown collection "+string(collection), nil)
	}
	if tenantID == "" {
		return core.NewError(core.ErrCodeValidation, "tenant id is required", nil)
	}
	for i := range points {
		if points[i].Payload == nil {
			points[i].Payload = make(map[string]any)
		}
		points[i].Payload["tenant_id"] = tenantID
	}
	return r.store.Upsert(ctx, spec.Name, points)
}

func specHasField(spec CollectionSpec, field string) bool {
	for _, f := range spec.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func candidatesFromMatches(matches []Match) []retrieval.Candidate {
	candidates := make([]retrieval.Candidate, 0, len(matches))
	for i, m := range matches {
		payload := core.CloneMap(m.Payload)
		snippet := ""
		if raw, ok := payload["text"].(string); ok {
			snippet = raw
			delete(payload, "text")
		}
		candidates = append(candidates, retrieval.Candidate{
			ID:         m.ID,
			Snippet:    snippet,
			Metadata:   payload,
			DenseRank:  i + 1,
			DenseScore: m.Score,
		})
	}
	return candidates
}
