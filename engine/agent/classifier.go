package agent

import (
	"context"
	"strings"

	"github.com/resolvd/resolvd/engine/ticket"
)

// Intent is the router's reading of what a ticket is asking for.
type Intent string

const (
	// IntentProcedural means the requester wants instructions; evidence comes
	// from the knowledge base.
	IntentProcedural Intent = "procedural"
	// IntentProblem means something is broken; evidence comes from resolved
	// cases.
	IntentProblem Intent = "problem"
	// IntentUnknown means neither signal matched and retrieval is skipped.
	IntentUnknown Intent = "unknown"
)

// IntentClassifier decides which retrieval collection (if any) a ticket
// routes to. The keyword implementation below is the default; a learned
// classifier can replace it without touching the state machine.
type IntentClassifier interface {
	Classify(ctx context.Context, t *ticket.TicketContext) Intent
}

// KeywordClassifier routes on keyword membership over subject + description.
type KeywordClassifier struct {
	procedural []string
	problem    []string
}

// NewKeywordClassifier returns the classifier with the built-in keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		procedural: []string{
			"how to", "how do", "how can", "guide", "tutorial", "walkthrough",
			"setup", "set up", "configure", "configuration", "install", "instructions", "steps to",
		},
		problem: []string{
			"error", "bug", "failed", "failure", "failing", "broken", "crash",
			"exception", "not working", "doesn't work", "does not work",
			"unable to", "cannot", "can't", "timeout", "denied", "500", "403",
		},
	}
}

// Classify implements IntentClassifier. Procedural wording wins over problem
// wording when both appear, matching how requesters phrase how-to questions
// about error-prone features.
func (c *KeywordClassifier) Classify(_ context.Context, t *ticket.TicketContext) Intent {
	text := strings.ToLower(t.Text())
	if containsAny(text, c.procedural) {
		return IntentProcedural
	}
	if containsAny(text, c.problem) {
		return IntentProblem
	}
	return IntentUnknown
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
