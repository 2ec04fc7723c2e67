// Package rag drives the answer pipeline: expand, decompose, retrieve, fuse,
// rerank, prune, generate. Every LLM-dependent refinement stage degrades to
// its input on failure; only generation itself can error the pipeline.
package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// Retriever is the hybrid retrieval orchestrator consumed by the pipeline.
type Retriever interface {
	Expand(ctx context.Context, llm domain.ChatCompleter, query string) string
	Decompose(ctx context.Context, llm domain.ChatCompleter, query string) []string
	FanOut(ctx context.Context, embedder domain.Embedder, subQueries []string) []domain.RetrievalResult
	VectorOnly(ctx context.Context, embedder domain.Embedder, query string, topK int) ([]domain.RetrievalResult, error)
}

// Service runs the RAG pipeline.
type Service struct {
	retriever Retriever
	cfg       config.RAGConfig
}

// New creates the pipeline service.
func New(retriever Retriever, cfg config.RAGConfig) *Service {
	return &Service{retriever: retriever, cfg: cfg}
}

// Request is one pipeline invocation.
type Request struct {
	Query      string
	MaxResults int  // passages returned to the caller, 0 = ContextCap
	FastMode   bool // skip LLM refinement stages
}

// run tracks the state machine for one request.
type run struct {
	stage   domain.Stage
	timings map[domain.Stage]time.Duration
	started time.Time
}

func newRun() *run {
	return &run{
		stage:   domain.StageReceived,
		timings: make(map[domain.Stage]time.Duration),
		started: time.Now(),
	}
}

// enter advances the state machine and times the stage body.
func (r *run) enter(stage domain.Stage, fn func()) {
	r.stage = stage
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	r.timings[stage] = elapsed
	metrics.PipelineStageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// Query answers a question over the corpus. llm handles every chat stage,
// embedder every vectorization; both are request-scoped, key-bound clients.
func (s *Service) Query(ctx context.Context, llm domain.ChatCompleter, embedder domain.Embedder, req Request) (domain.RAGResponse, error) {
	if req.Query == "" {
		return domain.RAGResponse{}, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}

	mode := "full"
	if req.FastMode {
		mode = "fast"
	}

	resp, err := s.query(ctx, llm, embedder, req)
	if err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues(mode, "error").Inc()
		return domain.RAGResponse{}, err
	}
	metrics.PipelineRequestsTotal.WithLabelValues(mode, "ok").Inc()
	return resp, nil
}

func (s *Service) query(ctx context.Context, llm domain.ChatCompleter, embedder domain.Embedder, req Request) (domain.RAGResponse, error) {
	log := logger.FromContext(ctx)
	r := newRun()

	analysis := domain.QueryAnalysis{OriginalQuery: req.Query, ExpandedQuery: req.Query}

	var results []domain.RetrievalResult
	if req.FastMode {
		var err error
		r.enter(domain.StageRetrieving, func() {
			results, err = s.retriever.VectorOnly(ctx, embedder, req.Query, s.cfg.FastTopK)
		})
		if err != nil {
			r.stage = domain.StageErrored
			return domain.RAGResponse{}, fmt.Errorf("fast retrieval: %w", err)
		}
		analysis.SubQueries = []string{req.Query}
		analysis.TotalRetrieved = len(results)
	} else {
		searchQuery := req.Query
		subQueries := []string{req.Query}

		r.enter(domain.StageExpanding, func() {
			if s.cfg.ExpansionEnabled() {
				searchQuery = s.retriever.Expand(ctx, llm, req.Query)
			}
			if s.cfg.QueryDecomposition {
				subQueries = s.retriever.Decompose(ctx, llm, req.Query)
			} else {
				subQueries = []string{searchQuery}
			}
		})
		analysis.ExpandedQuery = searchQuery
		analysis.SubQueries = subQueries

		var raw []domain.RetrievalResult
		r.enter(domain.StageRetrieving, func() {
			raw = s.retriever.FanOut(ctx, embedder, subQueries)
		})
		analysis.TotalRetrieved = len(raw)

		r.enter(domain.StageFusing, func() {
			results = retrieval.Fuse(raw, s.cfg.MaxPassages)
		})
		metrics.PipelinePassages.WithLabelValues("fused").Observe(float64(len(results)))
	}

	before := len(results)

	if !req.FastMode {
		r.enter(domain.StageReranking, func() {
			results = s.rerank(ctx, llm, req.Query, results)
		})

		if s.cfg.ContextPruning {
			r.enter(domain.StagePruning, func() {
				results = s.prune(ctx, embedder, req.Query, results)
			})
			metrics.PipelinePassages.WithLabelValues("pruned").Observe(float64(len(results)))
		}
	}
	analysis.AfterPruning = len(results)

	var answer string
	var genErr error
	r.enter(domain.StageGenerating, func() {
		answer, genErr = s.generate(ctx, llm, req.Query, results)
	})
	if genErr != nil {
		r.stage = domain.StageErrored
		log.Error("answer generation failed", zap.Error(genErr))
		return domain.RAGResponse{}, fmt.Errorf("generate answer: %w", genErr)
	}
	r.stage = domain.StageCompleted

	returned := results
	limit := req.MaxResults
	if limit <= 0 {
		limit = s.cfg.ContextCap
	}
	if len(returned) > limit {
		returned = returned[:limit]
	}

	total := time.Since(r.started)
	return domain.RAGResponse{
		Answer:   answer,
		Passages: returned,
		Analysis: analysis,
		Metrics: domain.PipelineMetrics{
			StageTimings:     r.timings,
			PassagesBefore:   before,
			PassagesAfter:    len(results),
			CompressionRatio: compressionRatio(before, len(results)),
			ProcessingTime:   total,
		},
	}, nil
}

// compressionRatio is after/before, 0 when nothing was retrieved.
func compressionRatio(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return float64(after) / float64(before)
}
