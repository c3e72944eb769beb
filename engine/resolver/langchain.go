package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/ticket"
	"github.com/resolvd/resolvd/pkg/config"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 500 * time.Millisecond
	maxEvidenceSnippets  = 5
)

const draftSystemPrompt = `You are a support resolution assistant. Draft a response for the ticket ` +
	`using the supplied evidence when it is relevant. Respond with a JSON object: ` +
	`{"response": string, "confidence": number between 0 and 1, "justification": string}.`

const fieldsSystemPrompt = `You are a support resolution assistant. Propose updates to the ticket's ` +
	`structured fields (for example priority, category, assignee group) based on the ticket and evidence. ` +
	`Respond with a single flat JSON object of field name to proposed value. ` +
	`Respond with {} when no update is warranted.`

// LangChainResolver implements Resolver on top of a langchaingo chat model
// with JSON-mode responses and bounded retry on transient failures.
type LangChainResolver struct {
	model         llms.Model
	timeout       time.Duration
	retryAttempts int
	retryBackoff  time.Duration
}

// NewLangChainResolver builds a resolver from configuration.
func NewLangChainResolver(cfg *config.ResolverConfig) (*LangChainResolver, error) {
	if cfg == nil {
		return nil, errors.New("resolver config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		model, err := openai.New(openai.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("resolver provider openai: %w", err)
		}
		return WrapModel(cfg, model)
	default:
		return nil, fmt.Errorf("unsupported resolver provider %q", cfg.Provider)
	}
}

// WrapModel builds a resolver around an existing model. Used by tests and by
// callers that construct the model themselves.
func WrapModel(cfg *config.ResolverConfig, model llms.Model) (*LangChainResolver, error) {
	if model == nil {
		return nil, errors.New("resolver model is required")
	}
	r := &LangChainResolver{
		model:         model,
		timeout:       defaultTimeout,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	if cfg != nil {
		if cfg.Timeout > 0 {
			r.timeout = cfg.Timeout
		}
		if cfg.RetryAttempts > 0 {
			r.retryAttempts = cfg.RetryAttempts
		}
		if cfg.RetryBackoff > 0 {
			r.retryBackoff = cfg.RetryBackoff
		}
	}
	return r, nil
}

// DraftResponse implements Resolver.
func (r *LangChainResolver) DraftResponse(
	ctx context.Context,
	t *ticket.TicketContext,
	results *retrieval.SearchResults,
) (*Draft, error) {
	raw, err := r.generate(ctx, draftSystemPrompt, buildUserPrompt(t, results))
	if err != nil {
		return nil, core.NewError(core.ErrCodeGeneration, "draft generation failed", err)
	}
	draft := &Draft{}
	if err := json.Unmarshal([]byte(extractJSON(raw)), draft); err != nil {
		return nil, core.NewError(core.ErrCodeGeneration, "draft response is not valid JSON", err)
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}

// ProposeFieldUpdates implements Resolver.
func (r *LangChainResolver) ProposeFieldUpdates(
	ctx context.Context,
	t *ticket.TicketContext,
	results *retrieval.SearchResults,
) (map[string]any, error) {
	raw, err := r.generate(ctx, fieldsSystemPrompt, buildUserPrompt(t, results))
	if err != nil {
		return nil, core.NewError(core.ErrCodeGeneration, "field update generation failed", err)
	}
	updates := map[string]any{}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &updates); err != nil {
		return nil, core.NewError(core.ErrCodeGeneration, "field updates are not valid JSON", err)
	}
	return updates, nil
}

func (r *LangChainResolver) generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	backoff := retry.WithMaxRetries(
		uint64(r.retryAttempts),
		retry.NewExponential(r.retryBackoff),
	)
	var content string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		response, callErr := r.model.GenerateContent(ctx, messages, llms.WithJSONMode())
		if callErr != nil {
			if errors.Is(callErr, context.Canceled) || errors.Is(callErr, context.DeadlineExceeded) {
				return callErr
			}
			return retry.RetryableError(callErr)
		}
		if len(response.Choices) == 0 {
			return retry.RetryableError(errors.New("model returned no choices"))
		}
		content = response.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func buildUserPrompt(t *ticket.TicketContext, results *retrieval.SearchResults) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s (priority %s, status %s)\n", t.TicketID, t.Priority, t.Status)
	fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	if results != nil {
		writeEvidence(&b, "Similar resolved cases", results.SimilarCases)
		writeEvidence(&b, "Knowledge-base procedures", results.KBProcedures)
	}
	return b.String()
}

func writeEvidence(b *strings.Builder, title string, result *retrieval.RankedResult) {
	if result == nil || len(result.Candidates) == 0 {
		fmt.Fprintf(b, "\n%s: none found.\n", title)
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	limit := len(result.Candidates)
	if limit > maxEvidenceSnippets {
		limit = maxEvidenceSnippets
	}
	for i := 0; i < limit; i++ {
		c := result.Candidates[i]
		fmt.Fprintf(b, "%d. [%s] %s\n", i+1, c.ID, c.Snippet)
	}
	if !result.Complete {
		b.WriteString("(evidence may be incomplete: a retrieval source was unavailable)\n")
	}
}

// extractJSON strips markdown code fences some models wrap around JSON-mode
// output.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
