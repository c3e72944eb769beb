package resolver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/resolver"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/ticket"
	"github.com/resolvd/resolvd/pkg/config"
)

type stubModel struct {
	responses []string
	calls     int
	err       error
	errOnce   bool
}

func (s *stubModel) GenerateContent(
	_ context.Context,
	_ []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	s.calls++
	if s.err != nil {
		if !s.errOnce || s.calls == 1 {
			return nil, s.err
		}
	}
	idx := s.calls - 1
	if s.errOnce {
		idx = s.calls - 2
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.responses[idx]}},
	}, nil
}

func (s *stubModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func resolverCfg() *config.ResolverConfig {
	return &config.ResolverConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	}
}

func sampleTicket() *ticket.TicketContext {
	return &ticket.TicketContext{
		TicketID:    "T-7",
		TenantID:    "acme",
		Subject:     "Login throws 500 error",
		Description: "Started after the last deploy.",
		Priority:    "high",
		Status:      "open",
	}
}

func sampleResults() *retrieval.SearchResults {
	return &retrieval.SearchResults{
		SimilarCases: &retrieval.RankedResult{
			Candidates: []retrieval.Candidate{{ID: "case-3", Snippet: "restart the auth pod"}},
			Complete:   true,
		},
		KBProcedures: retrieval.Empty(),
	}
}

func TestLangChainResolver_ShouldParseDraftJSON(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"response": "Restart the auth pod and retry.", "confidence": 0.85, "justification": "matches case-3"}`,
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	draft, err := r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.NoError(t, err)
	assert.Equal(t, "Restart the auth pod and retry.", draft.Response)
	assert.InDelta(t, 0.85, draft.Confidence, 1e-9)
	assert.Equal(t, "matches case-3", draft.Justification)
}

func TestLangChainResolver_ShouldStripMarkdownFences(t *testing.T) {
	model := &stubModel{responses: []string{
		"```json\n{\"response\": \"ok\", \"confidence\": 0.5, \"justification\": \"because\"}\n```",
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	draft, err := r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.NoError(t, err)
	assert.Equal(t, "ok", draft.Response)
}

func TestLangChainResolver_ShouldRejectPartiallyFilledDraft(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"response": "fix it", "confidence": 0.9, "justification": ""}`,
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	_, err = r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeGeneration))
}

func TestLangChainResolver_ShouldRejectOutOfRangeConfidence(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"response": "fix it", "confidence": 1.4, "justification": "sure"}`,
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	_, err = r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeGeneration))
}

func TestLangChainResolver_ShouldRetryTransientFailuresOnce(t *testing.T) {
	model := &stubModel{
		err:     errors.New("rate limited"),
		errOnce: true,
		responses: []string{
			`{"response": "done", "confidence": 0.7, "justification": "after retry"}`,
		},
	}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	draft, err := r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.NoError(t, err)
	assert.Equal(t, "done", draft.Response)
	assert.Equal(t, 2, model.calls)
}

func TestLangChainResolver_ShouldFailWithGenerationCodeWhenExhausted(t *testing.T) {
	model := &stubModel{err: errors.New("provider down")}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	_, err = r.DraftResponse(context.Background(), sampleTicket(), sampleResults())

	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeGeneration))
}

func TestLangChainResolver_ShouldParseFieldUpdates(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"priority": "urgent", "category": "authentication"}`,
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	updates, err := r.ProposeFieldUpdates(context.Background(), sampleTicket(), sampleResults())

	require.NoError(t, err)
	assert.Equal(t, "urgent", updates["priority"])
	assert.Equal(t, "authentication", updates["category"])
}

func TestLangChainResolver_ShouldDraftWithEmptyEvidence(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"response": "We will look into this.", "confidence": 0.3, "justification": "no evidence found"}`,
	}}
	r, err := resolver.WrapModel(resolverCfg(), model)
	require.NoError(t, err)

	draft, err := r.DraftResponse(context.Background(), sampleTicket(), &retrieval.SearchResults{
		SimilarCases: retrieval.Empty(),
		KBProcedures: retrieval.Empty(),
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.3, draft.Confidence, 1e-9)
}
