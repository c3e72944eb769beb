package agent

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/engine/resolver"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/ticket"
	"github.com/resolvd/resolvd/pkg/config"
	"github.com/resolvd/resolvd/pkg/logger"
)

// Retriever is the retrieval orchestrator port consumed by the workflow.
type Retriever interface {
	Retrieve(ctx context.Context, query retrieval.QueryContext) (*retrieval.RankedResult, error)
}

// Machine drives one ticket through the resolution workflow: route, retrieve,
// propose, then a bounded human-approval loop. Each run owns its AgentState;
// nodes execute strictly in sequence.
type Machine struct {
	retriever  Retriever
	resolver   resolver.Resolver
	approvals  ApprovalGateway
	classifier IntentClassifier
	cfg        config.ApprovalConfig
	tracer     trace.Tracer
}

// NewMachine wires the workflow. A nil classifier selects the keyword
// default.
func NewMachine(
	ret Retriever,
	res resolver.Resolver,
	approvals ApprovalGateway,
	classifier IntentClassifier,
	cfg config.ApprovalConfig,
) (*Machine, error) {
	if ret == nil {
		return nil, errors.New("agent: retriever is required")
	}
	if res == nil {
		return nil, errors.New("agent: resolver is required")
	}
	if approvals == nil {
		return nil, errors.New("agent: approval gateway is required")
	}
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if cfg.MaxIterations <= 0 {
		return nil, errors.New("agent: approval max iterations must be configured")
	}
	if cfg.OnLimit == "" {
		cfg.OnLimit = config.LimitReject
	}
	return &Machine{
		retriever:  ret,
		resolver:   res,
		approvals:  approvals,
		classifier: classifier,
		cfg:        cfg,
		tracer:     otel.Tracer("resolvd.agent"),
	}, nil
}

// Run processes one ticket to a terminal state. The returned AgentState
// always carries a terminal status; fatal failures surface as StatusError
// with a non-empty Errors list, not as a returned error. The only returned
// error is a validation failure that prevented the run from starting.
func (m *Machine) Run(ctx context.Context, t *ticket.TicketContext) (*AgentState, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	state := NewAgentState(t)
	log := logger.FromContext(ctx).With("run_id", state.RunID, "ticket_id", t.TicketID)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx, span := m.tracer.Start(ctx, "resolvd.agent.run", trace.WithAttributes(
		attribute.String("run_id", state.RunID),
		attribute.String("ticket_id", t.TicketID),
	))
	defer span.End()

	m.route(ctx, state)
	if err := m.proposeSolution(ctx, state); err != nil {
		return m.fail(ctx, state, err), nil
	}
	if err := m.proposeFieldUpdates(ctx, state); err != nil {
		return m.fail(ctx, state, err), nil
	}
	m.approve(ctx, state)
	span.SetAttributes(attribute.String("status", string(state.Status)))
	recordRunOutcome(ctx, state.Status)
	log.Info("Workflow run finished", "status", string(state.Status), "warnings", len(state.Errors))
	return state, nil
}

// route classifies the ticket and runs the matching retrieval node. A ticket
// with no procedural or problem signal skips retrieval entirely.
func (m *Machine) route(ctx context.Context, state *AgentState) {
	intent := m.classifier.Classify(ctx, state.Ticket)
	state.Metadata["intent"] = string(intent)
	recordRouterDecision(ctx, intent)
	logger.FromContext(ctx).Debug("Router decision", "intent", string(intent))
	switch intent {
	case IntentProblem:
		state.Results.SimilarCases = m.retrieve(ctx, state, retrieval.CollectionCases)
		state.Results.KBProcedures = retrieval.Empty()
	case IntentProcedural:
		state.Results.KBProcedures = m.retrieve(ctx, state, retrieval.CollectionKB)
		state.Results.SimilarCases = retrieval.Empty()
	default:
		state.Results.SimilarCases = retrieval.Empty()
		state.Results.KBProcedures = retrieval.Empty()
	}
}

// retrieve runs one retrieval call. Retrieval failure is never fatal: a
// degraded or failed call yields an explicit empty result plus warnings on
// the state.
func (m *Machine) retrieve(ctx context.Context, state *AgentState, collection retrieval.Collection) *retrieval.RankedResult {
	t := state.Ticket
	result, err := m.retriever.Retrieve(ctx, retrieval.QueryContext{
		TenantID:   t.TenantID,
		Platform:   t.Platform,
		QueryText:  t.Text(),
		Collection: collection,
	})
	if err != nil {
		state.AddWarning(fmt.Sprintf("%s retrieval unavailable: %v", collection, err))
		logger.FromContext(ctx).Warn("Retrieval unavailable, continuing without evidence",
			"collection", string(collection), "error", err)
		return &retrieval.RankedResult{Complete: false, Warnings: []string{err.Error()}}
	}
	for _, warning := range result.Warnings {
		state.AddWarning(warning)
	}
	return result
}

func (m *Machine) proposeSolution(ctx context.Context, state *AgentState) error {
	draft, err := m.resolver.DraftResponse(ctx, state.Ticket, &state.Results)
	if err != nil {
		return err
	}
	iteration := 0
	if state.Proposal != nil {
		iteration = state.Proposal.ApprovalIteration
	}
	state.Proposal = &ProposedAction{
		TicketID:          state.Ticket.TicketID,
		DraftResponse:     draft.Response,
		Confidence:        draft.Confidence,
		Justification:     draft.Justification,
		SimilarCases:      state.Results.SimilarCases,
		KBProcedures:      state.Results.KBProcedures,
		ApprovalIteration: iteration,
	}
	return nil
}

func (m *Machine) proposeFieldUpdates(ctx context.Context, state *AgentState) error {
	updates, err := m.resolver.ProposeFieldUpdates(ctx, state.Ticket, &state.Results)
	if err != nil {
		return err
	}
	state.Proposal.ProposedFields = updates
	return nil
}

// approve drives the human-approval loop. A modified decision feeds the
// reviewer's edits back through the propose stages, bounded by the configured
// iteration maximum so the loop always terminates.
func (m *Machine) approve(ctx context.Context, state *AgentState) {
	log := logger.FromContext(ctx)
	for {
		decision, err := m.approvals.RequestApproval(ctx, state.Proposal)
		if err != nil {
			m.fail(ctx, state, core.NewError(core.ErrCodeApprovalUnavailable, "approval request failed", err))
			return
		}
		switch decision.Outcome {
		case OutcomeApproved:
			state.Status = StatusApproved
			return
		case OutcomeRejected:
			state.Status = StatusRejected
			return
		case OutcomeModified:
			state.Proposal.ApprovalIteration++
			m.applyEdits(state, decision)
			if state.Proposal.ApprovalIteration >= m.cfg.MaxIterations {
				m.finishAtLimit(ctx, state)
				return
			}
			log.Info("Proposal modified by reviewer, re-proposing",
				"iteration", state.Proposal.ApprovalIteration)
			if err := m.proposeSolution(ctx, state); err != nil {
				m.fail(ctx, state, err)
				return
			}
			if err := m.proposeFieldUpdates(ctx, state); err != nil {
				m.fail(ctx, state, err)
				return
			}
		default:
			m.fail(ctx, state, core.NewError(core.ErrCodeApprovalUnavailable,
				fmt.Sprintf("unknown approval outcome %q", decision.Outcome), nil))
			return
		}
	}
}

// applyEdits folds the reviewer's edits into the run so the next proposal can
// take them into account.
func (m *Machine) applyEdits(state *AgentState, decision *ApprovalDecision) {
	if decision.EditedResponse != "" {
		state.Metadata["reviewer_response"] = decision.EditedResponse
	}
	if len(decision.EditedFields) > 0 {
		state.Metadata["reviewer_fields"] = core.CloneMap(decision.EditedFields)
	}
	if decision.Note != "" {
		state.Metadata["reviewer_note"] = decision.Note
	}
}

// finishAtLimit resolves the bounded-loop guard deterministically using the
// configured outcome.
func (m *Machine) finishAtLimit(ctx context.Context, state *AgentState) {
	msg := fmt.Sprintf("approval loop reached the configured maximum of %d iterations", m.cfg.MaxIterations)
	logger.FromContext(ctx).Warn("Approval iteration limit reached",
		"max_iterations", m.cfg.MaxIterations,
		"outcome", string(m.cfg.OnLimit),
	)
	if m.cfg.OnLimit == config.LimitError {
		m.fail(ctx, state, core.NewError(core.ErrCodeApprovalLimit, msg, nil))
		return
	}
	state.AddWarning(msg)
	state.Status = StatusRejected
}

// fail is the single error sink: every fatal condition lands here exactly
// once, appending the cause and setting the terminal error status.
func (m *Machine) fail(ctx context.Context, state *AgentState, err error) *AgentState {
	state.Errors = append(state.Errors, err.Error())
	state.Status = StatusError
	logger.FromContext(ctx).Error("Workflow run failed", "error", err)
	return state
}
