package agent

import (
	"context"
	"errors"
	"time"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/pkg/config"
	"github.com/resolvd/resolvd/pkg/logger"
)

// ApprovalGateway is the human approval collaborator. RequestApproval is
// synchronous from the workflow's perspective; implementations typically park
// the request somewhere and block until a person (or the expiry policy)
// produces a decision. Implementations must not hold locks or pooled
// connections while waiting.
type ApprovalGateway interface {
	RequestApproval(ctx context.Context, action *ProposedAction) (*ApprovalDecision, error)
}

// PolicyGateway wraps a gateway with the configured wait policy. With
// WaitBlock the inner gateway is awaited indefinitely; with an auto policy an
// expiry deadline converts a missing decision into the configured verdict
// instead of an error.
type PolicyGateway struct {
	inner  ApprovalGateway
	policy config.ApprovalWaitPolicy
	expiry time.Duration
}

// NewPolicyGateway applies the approval wait configuration to a gateway.
func NewPolicyGateway(inner ApprovalGateway, cfg config.ApprovalConfig) (*PolicyGateway, error) {
	if inner == nil {
		return nil, errors.New("approval gateway is required")
	}
	if cfg.Wait != config.WaitBlock && cfg.Expiry <= 0 {
		return nil, errors.New("approval expiry is required for auto wait policies")
	}
	return &PolicyGateway{inner: inner, policy: cfg.Wait, expiry: cfg.Expiry}, nil
}

// RequestApproval implements ApprovalGateway.
func (g *PolicyGateway) RequestApproval(ctx context.Context, action *ProposedAction) (*ApprovalDecision, error) {
	if g.policy == config.WaitBlock {
		return g.inner.RequestApproval(ctx, action)
	}
	waitCtx, cancel := context.WithTimeout(ctx, g.expiry)
	defer cancel()
	decision, err := g.inner.RequestApproval(waitCtx, action)
	if err == nil {
		return decision, nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	logger.FromContext(ctx).Warn("Approval request expired, applying wait policy",
		"ticket_id", action.TicketID,
		"policy", string(g.policy),
	)
	switch g.policy {
	case config.WaitAutoApprove:
		return &ApprovalDecision{Outcome: OutcomeApproved, Note: "auto-approved after expiry"}, nil
	case config.WaitAutoReject:
		return &ApprovalDecision{Outcome: OutcomeRejected, Note: "auto-rejected after expiry"}, nil
	default:
		return nil, core.NewError(core.ErrCodeApprovalUnavailable, "approval request expired", err)
	}
}
