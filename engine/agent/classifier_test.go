package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resolvd/resolvd/engine/agent"
	"github.com/resolvd/resolvd/engine/ticket"
)

func TestKeywordClassifier_ShouldRouteByKeywordMembership(t *testing.T) {
	classifier := agent.NewKeywordClassifier()
	cases := []struct {
		name    string
		subject string
		want    agent.Intent
	}{
		{"how-to routes to procedural", "How to configure SSO integration", agent.IntentProcedural},
		{"error routes to problem", "Login throws 500 error", agent.IntentProblem},
		{"neither routes to unknown", "Please cancel my subscription", agent.IntentUnknown},
		{"setup routes to procedural", "Setup guide for the Slack app", agent.IntentProcedural},
		{"crash routes to problem", "App crash when uploading attachments", agent.IntentProblem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.Classify(context.Background(), &ticket.TicketContext{
				TicketID: "T-1",
				TenantID: "acme",
				Subject:  tc.subject,
			})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKeywordClassifier_ShouldInspectDescriptionToo(t *testing.T) {
	classifier := agent.NewKeywordClassifier()

	got := classifier.Classify(context.Background(), &ticket.TicketContext{
		TicketID:    "T-2",
		TenantID:    "acme",
		Subject:     "Weekly report",
		Description: "The export failed with a timeout twice today.",
	})

	assert.Equal(t, agent.IntentProblem, got)
}
