package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/resolvd/resolvd/engine/core"
	"github.com/resolvd/resolvd/pkg/logger"
)

// DefaultTimeout is the shared deadline for the parallel dense/sparse pair.
const DefaultTimeout = 30 * time.Second

// DefaultTopN is the per-source candidate budget.
const DefaultTopN = 200

// Settings tunes one retrieval service instance.
type Settings struct {
	TopN       int
	RRFK       int
	FusedLimit int
	FinalTopK  int
	Timeout    time.Duration
}

func (s *Settings) normalize() {
	if s.TopN <= 0 {
		s.TopN = DefaultTopN
	}
	if s.RRFK <= 0 {
		s.RRFK = DefaultRRFK
	}
	if s.FusedLimit <= 0 {
		s.FusedLimit = DefaultFusedLimit
	}
	if s.FinalTopK <= 0 {
		s.FinalTopK = DefaultFinalTopK
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
}

// Service orchestrates the hybrid retrieval pipeline: dense and sparse search
// in parallel under one deadline, RRF fusion, then pairwise reranking.
// Retrieval failures degrade the result instead of failing the call; the only
// error Retrieve returns is a validation error raised before any search runs.
type Service struct {
	dense  Searcher
	sparse Searcher
	scorer Scorer
	cfg    Settings
	tracer trace.Tracer
}

// NewService builds the retrieval orchestrator. The scorer may be nil, in
// which case results keep the fused order.
func NewService(dense, sparse Searcher, scorer Scorer, cfg Settings) (*Service, error) {
	if dense == nil {
		return nil, errors.New("retrieval: dense searcher is required")
	}
	if sparse == nil {
		return nil, errors.New("retrieval: sparse searcher is required")
	}
	cfg.normalize()
	return &Service{
		dense:  dense,
		sparse: sparse,
		scorer: scorer,
		cfg:    cfg,
		tracer: otel.Tracer("resolvd.retrieval"),
	}, nil
}

// Retrieve runs the full pipeline for one query and returns the final top-K
// result. The returned RankedResult is read-only for the caller.
func (s *Service) Retrieve(ctx context.Context, query QueryContext) (*RankedResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(
		"tenant_id", query.TenantID,
		"collection", string(query.Collection),
	)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "resolvd.retrieval.retrieve", trace.WithAttributes(
		attribute.String("tenant_id", query.TenantID),
		attribute.String("collection", string(query.Collection)),
	))
	defer span.End()
	defer func() {
		recordQueryLatency(ctx, query.Collection, time.Since(start))
	}()

	dense, sparse, warnings := s.searchBoth(ctx, query)
	result := &RankedResult{
		Complete: len(warnings) == 0,
		Warnings: warnings,
	}
	if len(dense) == 0 && len(sparse) == 0 {
		recordEmptyResult(ctx, query.Collection)
		span.SetAttributes(attribute.Int("results", 0))
		log.Debug("Hybrid retrieval produced no candidates", "complete", result.Complete)
		return result, nil
	}
	fused := Fuse(dense, sparse, s.cfg.RRFK, s.cfg.FusedLimit)
	final, rerankWarn := s.rerank(ctx, query, fused)
	if rerankWarn != "" {
		result.Warnings = append(result.Warnings, rerankWarn)
	}
	result.Candidates = final
	span.SetAttributes(attribute.Int("results", len(final)))
	log.Info("Hybrid retrieval finished",
		"dense", len(dense),
		"sparse", len(sparse),
		"results", len(final),
		"complete", result.Complete,
		"duration_seconds", time.Since(start).Seconds(),
	)
	return result, nil
}

// searchBoth races the dense and sparse searches against one shared deadline.
// When the deadline elapses both in-flight calls see a cancelled context. A
// failed side contributes an empty list and a warning; it never aborts the
// call.
func (s *Service) searchBoth(ctx context.Context, query QueryContext) (dense, sparse []Candidate, warnings []string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var denseErr, sparseErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		dense, denseErr = s.searchSource(ctx, "dense", s.dense, query)
		return nil
	})
	g.Go(func() error {
		sparse, sparseErr = s.searchSource(ctx, "sparse", s.sparse, query)
		return nil
	})
	// Branch errors are captured above; Wait only joins the pair.
	_ = g.Wait()

	log := logger.FromContext(ctx)
	if denseErr != nil {
		warnings = append(warnings, fmt.Sprintf("dense retrieval degraded: %v", denseErr))
		recordDegradedSource(ctx, query.Collection, "dense")
		log.Warn("Dense retrieval failed, continuing without it", "error", denseErr)
	}
	if sparseErr != nil {
		warnings = append(warnings, fmt.Sprintf("sparse retrieval degraded: %v", sparseErr))
		recordDegradedSource(ctx, query.Collection, "sparse")
		log.Warn("Sparse retrieval failed, continuing without it", "error", sparseErr)
	}
	return dense, sparse, warnings
}

func (s *Service) searchSource(
	ctx context.Context,
	source string,
	searcher Searcher,
	query QueryContext,
) ([]Candidate, error) {
	spanCtx, span := s.tracer.Start(ctx, "resolvd.retrieval.search_"+source, trace.WithAttributes(
		attribute.String("tenant_id", query.TenantID),
		attribute.String("collection", string(query.Collection)),
		attribute.Int("top_n", s.cfg.TopN),
	))
	defer span.End()
	candidates, err := searcher.Search(spanCtx, query, s.cfg.TopN)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.NewError(core.ErrCodeRetrievalTimeout, source+" search timed out", err)
		}
		return nil, core.NewError(core.ErrCodeRetrieval, source+" search failed", err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

// rerank applies the pairwise scorer to the fused shortlist. Scorer failures
// fall back to the fused order; a missing scorer keeps the fused order
// silently.
func (s *Service) rerank(ctx context.Context, query QueryContext, fused []Candidate) ([]Candidate, string) {
	if s.scorer == nil {
		return Truncate(fused, s.cfg.FinalTopK), ""
	}
	spanCtx, span := s.tracer.Start(ctx, "resolvd.retrieval.rerank", trace.WithAttributes(
		attribute.Int("candidates", len(fused)),
	))
	defer span.End()
	ranked, err := Rerank(spanCtx, s.scorer, query.QueryText, fused, s.cfg.FinalTopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordRerankFallback(ctx, query.Collection)
		logger.FromContext(ctx).Warn("Reranker unavailable, keeping fused order", "error", err)
		return Truncate(fused, s.cfg.FinalTopK), fmt.Sprintf("rerank unavailable: %v", err)
	}
	return ranked, ""
}
