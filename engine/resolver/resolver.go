package resolver

import (
	"context"
	"strings"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/ticket"
)

// Draft is the generated resolution proposal for one ticket. All fields are
// required; a draft with missing fields is rejected at the adapter boundary,
// never handed to the workflow.
type Draft struct {
	Response      string  `json:"response"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}

// Validate enforces the all-fields-required contract.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Response) == "" {
		return core.NewError(core.ErrCodeGeneration, "draft response is empty", nil)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return core.NewError(core.ErrCodeGeneration, "draft confidence out of range", nil)
	}
	if strings.TrimSpace(d.Justification) == "" {
		return core.NewError(core.ErrCodeGeneration, "draft justification is empty", nil)
	}
	return nil
}

// Resolver is the generation collaborator: it drafts a response and proposes
// structured field updates from the ticket plus retrieved evidence. The
// evidence may be empty; the resolver must still produce a draft. Errors from
// this port are fatal to a workflow run.
type Resolver interface {
	DraftResponse(ctx context.Context, t *ticket.TicketContext, results *retrieval.SearchResults) (*Draft, error)
	ProposeFieldUpdates(ctx context.Context, t *ticket.TicketContext, results *retrieval.SearchResults) (map[string]any, error)
}
