// Package rerank provides concrete pairwise relevance scorers for the
// retrieval pipeline's rerank stage.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/resolvd/resolvd/pkg/config"
)

const defaultTimeout = 10 * time.Second

// HTTPScorer calls a cross-encoder scoring service: the service receives the
// query and the candidate passages and returns one relevance score per
// passage, in input order.
type HTTPScorer struct {
	client *resty.Client
}

type scoreRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// NewHTTPScorer builds a scorer from configuration.
func NewHTTPScorer(cfg *config.RerankerConfig) (*HTTPScorer, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New("reranker endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPScorer{client: client}, nil
}

// Score implements retrieval.Scorer.
func (s *HTTPScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	var out scoreResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(scoreRequest{Query: query, Passages: passages}).
		SetResult(&out).
		Post("/rerank")
	if err != nil {
		return nil, fmt.Errorf("rerank scorer request failed: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return nil, fmt.Errorf("rerank scorer returned %s: %s", resp.Status(), out.Error)
		}
		return nil, fmt.Errorf("rerank scorer returned %s", resp.Status())
	}
	if len(out.Scores) != len(passages) {
		return nil, fmt.Errorf("rerank scorer returned %d scores for %d passages", len(out.Scores), len(passages))
	}
	return out.Scores, nil
}
