package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd/engine/agent"
	"github.com/resolvd/resolvd/engine/resolver"
	"github.com/resolvd/resolvd/engine/retrieval"
	"github.com/resolvd/resolvd/engine/retrieval/dense"
	"github.com/resolvd/resolvd/engine/retrieval/embedder"
	"github.com/resolvd/resolvd/engine/retrieval/rerank"
	"github.com/resolvd/resolvd/engine/retrieval/sparse"
	"github.com/resolvd/resolvd/engine/ticket"
	"github.com/resolvd/resolvd/pkg/config"
	"github.com/resolvd/resolvd/pkg/logger"
)

func newProcessCmd() *cobra.Command {
	var (
		ticketID    string
		tenantID    string
		platform    string
		subject     string
		description string
		priority    string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one ticket through the resolution workflow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			ctx = config.ContextWithConfig(ctx, cfg)
			machine, err := buildMachine(cfg)
			if err != nil {
				return err
			}
			state, err := machine.Run(ctx, &ticket.TicketContext{
				TicketID:    ticketID,
				TenantID:    tenantID,
				Platform:    platform,
				Subject:     subject,
				Description: description,
				Priority:    priority,
				Status:      "open",
			})
			if err != nil {
				return err
			}
			printOutcome(cmd, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "ticket-id", "", "ticket identifier")
	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "tenant identifier")
	cmd.Flags().StringVar(&platform, "platform", "", "source platform")
	cmd.Flags().StringVar(&subject, "subject", "", "ticket subject")
	cmd.Flags().StringVar(&description, "description", "", "ticket description")
	cmd.Flags().StringVar(&priority, "priority", "normal", "ticket priority")
	_ = cmd.MarkFlagRequired("ticket-id")
	_ = cmd.MarkFlagRequired("tenant-id")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func buildMachine(cfg *config.Config) (*agent.Machine, error) {
	embed, err := embedder.New(&cfg.Embedder)
	if err != nil {
		return nil, err
	}
	store, err := dense.NewQdrantStore(&cfg.Qdrant)
	if err != nil {
		return nil, err
	}
	denseRetriever, err := dense.NewRetriever(store, embed, nil)
	if err != nil {
		return nil, err
	}
	sparseRetriever := sparse.NewRetriever(&cfg.Sparse)
	var scorer retrieval.Scorer
	if cfg.Reranker.Endpoint != "" {
		scorer, err = rerank.NewHTTPScorer(&cfg.Reranker)
		if err != nil {
			return nil, err
		}
	}
	service, err := retrieval.NewService(denseRetriever, sparseRetriever, scorer, retrieval.Settings{
		TopN:       cfg.Retrieval.TopN,
		RRFK:       cfg.Retrieval.RRFK,
		FusedLimit: cfg.Retrieval.FusedLimit,
		FinalTopK:  cfg.Retrieval.FinalTopK,
		Timeout:    cfg.Retrieval.Timeout,
	})
	if err != nil {
		return nil, err
	}
	res, err := resolver.NewLangChainResolver(&cfg.Resolver)
	if err != nil {
		return nil, err
	}
	gateway, err := agent.NewPolicyGateway(&consoleGateway{}, cfg.Approval)
	if err != nil {
		return nil, err
	}
	return agent.NewMachine(service, res, gateway, nil, cfg.Approval)
}

// consoleGateway collects the approval decision interactively on stdin.
type consoleGateway struct{}

func (g *consoleGateway) RequestApproval(ctx context.Context, action *agent.ProposedAction) (*agent.ApprovalDecision, error) {
	fmt.Printf("\nProposed response for ticket %s (confidence %.2f):\n%s\n", action.TicketID, action.Confidence, action.DraftResponse)
	fmt.Printf("Justification: %s\n", action.Justification)
	if len(action.ProposedFields) > 0 {
		fmt.Printf("Proposed field updates: %v\n", action.ProposedFields)
	}
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		fmt.Print("Decision [approve/modify/reject]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read approval decision: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "approve", "a":
			return &agent.ApprovalDecision{Outcome: agent.OutcomeApproved}, nil
		case "reject", "r":
			return &agent.ApprovalDecision{Outcome: agent.OutcomeRejected}, nil
		case "modify", "m":
			fmt.Print("Feedback for the next draft: ")
			note, err := reader.ReadString('\n')
			if err != nil {
				return nil, fmt.Errorf("read feedback: %w", err)
			}
			return &agent.ApprovalDecision{Outcome: agent.OutcomeModified, Note: strings.TrimSpace(note)}, nil
		}
	}
}

func printOutcome(cmd *cobra.Command, state *agent.AgentState) {
	log := logger.FromContext(cmd.Context())
	log.Info("Run complete", "run_id", state.RunID, "status", string(state.Status))
	if state.Status == agent.StatusError {
		for _, e := range state.Errors {
			log.Error("Run error", "error", e)
		}
		return
	}
	for _, w := range state.Errors {
		log.Warn("Run warning", "warning", w)
	}
}
