package dense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/pkg/config"
)

const qdrantDefaultTimeout = 10 * time.Second

// QdrantStore talks to a Qdrant instance over its HTTP API using named
// vectors, one slot per semantic facet of a document.
type QdrantStore struct {
	client  *http.Client
	baseURL string
	apiKey  string
	metric  string
}

// qdrantSearchResult captures the fields returned by Qdrant search responses.
type qdrantSearchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// NewQdrantStore builds a store from configuration. The DSN is the HTTP base
// URL of the Qdrant instance.
func NewQdrantStore(cfg *config.QdrantConfig) (*QdrantStore, error) {
	if cfg == nil {
		return nil, errors.New("qdrant config is required")
	}
	base := strings.TrimRight(cfg.DSN, "/")
	if base == "" {
		return nil, errors.New("qdrant dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = qdrantDefaultTimeout
	}
	return &QdrantStore{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		apiKey:  cfg.APIKey,
		metric:  "Cosine",
	}, nil
}

// EnsureCollection creates the collection with one named vector slot per
// field. Existing collections are left untouched by Qdrant.
func (q *QdrantStore) EnsureCollection(ctx context.Context, collection string, fields []string, dimension int) error {
	if len(fields) == 0 {
		return errors.New("qdrant: at least one vector field is required")
	}
	vectors := make(map[string]any, len(fields))
	for _, field := range fields {
		vectors[field] = map[string]any{
			"size":     dimension,
			"distance": q.metric,
		}
	}
	body := map[string]any{"vectors": vectors}
	return q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", collection), body, nil)
}

// Upsert writes points with their named vectors and payload.
func (q *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]any, 0, len(points))
	for i := range points {
		pt := points[i]
		if len(pt.Vectors) == 0 {
			return fmt.Errorf("qdrant: point %q has no vectors", pt.ID)
		}
		payload := core.CloneMap(pt.Payload)
		if payload == nil {
			payload = make(map[string]any)
		}
		body = append(body, map[string]any{
			"id":      pt.ID,
			"vector":  pt.Vectors,
			"payload": payload,
		})
	}
	request := map[string]any{"points": body}
	return q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points", collection), request, nil)
}

// Search compares the query vector against one named vector field. The filter
// is translated into a Qdrant must-clause so it is applied inside the store.
func (q *QdrantStore) Search(
	ctx context.Context,
	collection string,
	field string,
	vector []float32,
	filter map[string]string,
	topN int,
) ([]Match, error) {
	if field == "" {
		return nil, errors.New("qdrant: vector field is required")
	}
	request := map[string]any{
		"vector": map[string]any{
			"name":   field,
			"vector": vector,
		},
		"limit":        topN,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		request["filter"] = f
	}
	var response struct {
		Result []qdrantSearchResult `json:"result"`
	}
	searchPath := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := q.doRequest(ctx, http.MethodPost, searchPath, request, &response); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(response.Result))
	for _, res := range response.Result {
		payload := core.CloneMap(res.Payload)
		if payload == nil {
			payload = make(map[string]any)
		}
		matches = append(matches, Match{
			ID:      fmt.Sprint(res.ID),
			Score:   res.Score,
			Payload: payload,
		})
	}
	return matches, nil
}

func (q *QdrantStore) Close(context.Context) error {
	q.client.CloseIdleConnections()
	return nil
}

func buildFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	must := make([]any, 0, len(filters))
	for key, val := range filters {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": val},
		})
	}
	return map[string]any{"must": must}
}

func (q *QdrantStore) doRequest(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: marshal request: %w", err)
		}
		buf = bytes.NewReader(payload)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("qdrant: read response: %w", readErr)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(payload, &apiErr); err != nil {
			return fmt.Errorf("qdrant: request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("qdrant: %s (%d): %s", apiErr.Error, resp.StatusCode, apiErr.Status)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}
