package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/engine/agent"
	"github.com/resolvd/resolvd/pkg/config"
)

// blockingGateway simulates a reviewer who never answers: it waits for the
// context to expire.
type blockingGateway struct{}

func (g *blockingGateway) RequestApproval(ctx context.Context, _ *agent.ProposedAction) (*agent.ApprovalDecision, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type immediateGateway struct {
	decision agent.ApprovalDecision
}

func (g *immediateGateway) RequestApproval(context.Context, *agent.ProposedAction) (*agent.ApprovalDecision, error) {
	return &g.decision, nil
}

func TestPolicyGateway_ShouldAutoApproveAfterExpiry(t *testing.T) {
	gw, err := agent.NewPolicyGateway(&blockingGateway{}, config.ApprovalConfig{
		MaxIterations: 3,
		Wait:          config.WaitAutoApprove,
		Expiry:        20 * time.Millisecond,
	})
	require.NoError(t, err)

	decision, err := gw.RequestApproval(context.Background(), &agent.ProposedAction{TicketID: "T-1"})

	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeApproved, decision.Outcome)
	assert.NotEmpty(t, decision.Note)
}

func TestPolicyGateway_ShouldAutoRejectAfterExpiry(t *testing.T) {
	gw, err := agent.NewPolicyGateway(&blockingGateway{}, config.ApprovalConfig{
		MaxIterations: 3,
		Wait:          config.WaitAutoReject,
		Expiry:        20 * time.Millisecond,
	})
	require.NoError(t, err)

	decision, err := gw.RequestApproval(context.Background(), &agent.ProposedAction{TicketID: "T-1"})

	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeRejected, decision.Outcome)
}

func TestPolicyGateway_ShouldPassThroughDecisionsUnderBlockPolicy(t *testing.T) {
	gw, err := agent.NewPolicyGateway(&immediateGateway{
		decision: agent.ApprovalDecision{Outcome: agent.OutcomeModified, Note: "tweak it"},
	}, config.ApprovalConfig{MaxIterations: 3, Wait: config.WaitBlock})
	require.NoError(t, err)

	decision, err := gw.RequestApproval(context.Background(), &agent.ProposedAction{TicketID: "T-1"})

	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeModified, decision.Outcome)
	assert.Equal(t, "tweak it", decision.Note)
}

func TestPolicyGateway_ShouldSurfaceNonTimeoutErrors(t *testing.T) {
	failing := approvalFunc(func(context.Context, *agent.ProposedAction) (*agent.ApprovalDecision, error) {
		return nil, errors.New("queue unavailable")
	})
	gw, err := agent.NewPolicyGateway(failing, config.ApprovalConfig{
		MaxIterations: 3,
		Wait:          config.WaitAutoApprove,
		Expiry:        time.Second,
	})
	require.NoError(t, err)

	_, err = gw.RequestApproval(context.Background(), &agent.ProposedAction{TicketID: "T-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue unavailable")
}

func TestPolicyGateway_ShouldRequireExpiryForAutoPolicies(t *testing.T) {
	_, err := agent.NewPolicyGateway(&blockingGateway{}, config.ApprovalConfig{
		MaxIterations: 3,
		Wait:          config.WaitAutoReject,
	})

	require.Error(t, err)
}

type approvalFunc func(context.Context, *agent.ProposedAction) (*agent.ApprovalDecision, error)

func (f approvalFunc) RequestApproval(ctx context.Context, action *agent.ProposedAction) (*agent.ApprovalDecision, error) {
	return f(ctx, action)
}
