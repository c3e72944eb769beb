package ticket

import (
	"context"
	"strings"

	"github.com/resolvd/resolvd/engine/core"
)

// TicketContext is the read-only snapshot of a ticket handed to a workflow
// run. It is owned by the caller; the engine never mutates it.
type TicketContext struct {
	TicketID    string         `json:"ticket_id"`
	TenantID    string         `json:"tenant_id"`
	Platform    string         `json:"platform"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	Requester   string         `json:"requester,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Text returns the free-text body used for intent routing and retrieval
// queries.
func (t *TicketContext) Text() string {
	return strings.TrimSpace(t.Subject + "\n" + t.Description)
}

// Validate rejects tickets that cannot enter the workflow. Tenant identity is
// mandatory; there is no fallback tenant.
func (t *TicketContext) Validate() error {
	if t == nil {
		return core.NewError(core.ErrCodeValidation, "ticket context is required", nil)
	}
	if strings.TrimSpace(t.TicketID) == "" {
		return core.NewError(core.ErrCodeValidation, "ticket id is required", nil)
	}
	if strings.TrimSpace(t.TenantID) == "" {
		return core.NewError(core.ErrCodeValidation, "ticket tenant id is required", nil)
	}
	if t.Text() == "" {
		return core.NewError(core.ErrCodeValidation, "ticket subject or description is required", nil)
	}
	return nil
}

// Client is the read-only port to the external ticketing system.
type Client interface {
	GetTicketContext(ctx context.Context, ticketID string) (*TicketContext, error)
}
