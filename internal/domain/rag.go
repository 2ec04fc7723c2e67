package domain

import "time"

// Stage is a pipeline state machine phase.
type Stage string

const (
	StageReceived   Stage = "received"
	StageExpanding  Stage = "expanding"
	StageRetrieving Stage = "retrieving"
	StageFusing     Stage = "fusing"
	StageReranking  Stage = "reranking"
	StagePruning    Stage = "pruning"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageErrored    Stage = "errored"
)

// QueryAnalysis describes what the query planner did for a request.
type QueryAnalysis struct {
	OriginalQuery  string
	ExpandedQuery  string
	SubQueries     []string
	TotalRetrieved int
	AfterPruning   int
}

// PipelineMetrics is the per-request metrics record. Not persisted.
type PipelineMetrics struct {
	StageTimings     map[Stage]time.Duration
	PassagesBefore   int
	PassagesAfter    int
	CompressionRatio float64
	ProcessingTime   time.Duration
}

// RAGResponse is the final synthesis output: answer text, the passages the
// answer actually used (capped), and the metrics record. Stateless.
type RAGResponse struct {
	Answer   string
	Passages []RetrievalResult
	Analysis QueryAnalysis
	Metrics  PipelineMetrics
}
