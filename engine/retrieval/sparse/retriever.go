package sparse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/pkg/config"
)

// Retriever is the lexical (BM25-style) side of hybrid retrieval, backed by
// one bleve index per collection. The tenant filter is part of the query
// conjunction, so documents of other tenants are never scored, let alone
// returned.
type Retriever struct {
	mu      sync.RWMutex
	path    string
	indexes map[string]bleve.Index
}

// NewRetriever builds the sparse retriever. An empty path keeps every index
// in memory, which is what tests and single-process deployments use.
func NewRetriever(cfg *config.SparseConfig) *Retriever {
	path := ""
	if cfg != nil {
		path = cfg.Path
	}
	return &Retriever{
		path:    path,
		indexes: make(map[string]bleve.Index),
	}
}

func buildIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Store = true

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("tenant_id", keywordField)
	doc.AddFieldMappingsAt("platform", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func (r *Retriever) index(collection retrieval.Collection, create bool) (bleve.Index, error) {
	name := string(collection)
	r.mu.RLock()
	idx, ok := r.indexes[name]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}
	if !create {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[name]; ok {
		return idx, nil
	}
	var (
		idx2 bleve.Index
		err  error
	)
	if r.path == "" {
		idx2, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		indexPath := filepath.Join(r.path, name)
		idx2, err = bleve.Open(indexPath)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx2, err = bleve.New(indexPath, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sparse: open index %s: %w", name, err)
	}
	r.indexes[name] = idx2
	return idx2, nil
}

// Index adds one document to the collection's lexical index.
func (r *Retriever) Index(
	_ context.Context,
	collection retrieval.Collection,
	id string,
	tenantID string,
	platform string,
	text string,
	metadata map[string]any,
) error {
	if strings.TrimSpace(id) == "" {
		return core.NewError(core.ErrCodeValidation, "document id is required", nil)
	}
	if strings.TrimSpace(tenantID) == "" {
		return core.NewError(core.ErrCodeValidation, "tenant id is required", nil)
	}
	idx, err := r.index(collection, true)
	if err != nil {
		return err
	}
	doc := map[string]any{
		"text":      text,
		"tenant_id": tenantID,
		"platform":  platform,
	}
	if len(metadata) > 0 {
		doc["metadata"] = core.CloneMap(metadata)
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("sparse: index document %s: %w", id, err)
	}
	return nil
}

// Search implements retrieval.Searcher over the collection's lexical index.
func (r *Retriever) Search(ctx context.Context, query retrieval.QueryContext, topN int) ([]retrieval.Candidate, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = retrieval.DefaultTopN
	}
	idx, err := r.index(query.Collection, false)
	if err != nil {
		return nil, core.NewError(core.ErrCodeRetrieval, "sparse index unavailable", err)
	}
	if idx == nil {
		// Nothing indexed yet for this collection: zero matches, not a failure.
		return nil, nil
	}

	match := bleve.NewMatchQuery(query.QueryText)
	match.SetField("text")
	tenant := bleve.NewTermQuery(query.TenantID)
	tenant.SetField("tenant_id")
	conj := bleve.NewConjunctionQuery(match, tenant)
	if query.Platform != "" {
		platform := bleve.NewTermQuery(query.Platform)
		platform.SetField("platform")
		conj.AddQuery(platform)
	}

	req := bleve.NewSearchRequestOptions(conj, topN, 0, false)
	req.Fields = []string{"*"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, core.NewError(core.ErrCodeRetrieval, "sparse search failed", err)
	}
	candidates := make([]retrieval.Candidate, 0, len(res.Hits))
	for i, hit := range res.Hits {
		snippet, _ := hit.Fields["text"].(string)
		candidates = append(candidates, retrieval.Candidate{
			ID:          hit.ID,
			Snippet:     snippet,
			Metadata:    metadataFromFields(hit.Fields),
			SparseRank:  i + 1,
			SparseScore: hit.Score,
		})
	}
	return candidates, nil
}

// Close releases every open index.
func (r *Retriever) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, idx := range r.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sparse: close index %s: %w", name, err)
		}
		delete(r.indexes, name)
	}
	return firstErr
}

// metadataFromFields rebuilds the metadata map from bleve's flattened
// "metadata.<key>" stored fields.
func metadataFromFields(fields map[string]any) map[string]any {
	var metadata map[string]any
	for key, val := range fields {
		name, ok := strings.CutPrefix(key, "metadata.")
		if !ok {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata[name] = val
	}
	return metadata
}
