package agent

import (
	"github.com/google/uuid"

	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/ticket"
)

// Status is the workflow's approval status. A run always terminates with one
// of the three terminal values.
type Status string

const (
	// StatusPending marks a run that has not reached a terminal state yet.
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
)

// Terminal reports whether the status is one of the three terminal values.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusError
}

// Outcome is a human reviewer's verdict on a proposal.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeModified Outcome = "modified"
	OutcomeRejected Outcome = "rejected"
)

// ApprovalDecision carries the reviewer's verdict plus their edits when the
// outcome is modified.
type ApprovalDecision struct {
	Outcome        Outcome
	EditedResponse string
	EditedFields   map[string]any
	Note           string
}

// ProposedAction is the complete resolution proposal put in front of a human
// reviewer. All fields are populated before it leaves the propose stages.
type ProposedAction struct {
	TicketID          string
	DraftResponse     string
	Confidence        float64
	Justification     string
	SimilarCases      *retrieval.RankedResult
	KBProcedures      *retrieval.RankedResult
	ProposedFields    map[string]any
	ApprovalIteration int
}

// AgentState is the mutable carrier for one workflow run. Exactly one
// instance exists per run and nodes mutate it strictly in sequence; it is
// never shared across runs.
type AgentState struct {
	RunID    string
	Ticket   *ticket.TicketContext
	Results  retrieval.SearchResults
	Proposal *ProposedAction
	Status   Status
	Errors   []string
	Metadata map[string]any
}

// NewAgentState creates the run state with only the ticket populated.
func NewAgentState(t *ticket.TicketContext) *AgentState {
	return &AgentState{
		RunID:    uuid.NewString(),
		Ticket:   t,
		Status:   StatusPending,
		Errors:   []string{},
		Metadata: map[string]any{},
	}
}

// AddWarning records a recoverable degradation. Warnings never change the
// workflow's course.
func (s *AgentState) AddWarning(msg string) {
	s.Errors = append(s.Errors, msg)
}
