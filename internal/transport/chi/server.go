// Package chi is the HTTP surface: the two pipeline operations plus health
// and Prometheus metrics, with bearer auth in front.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
	raguc "github.com/kailas-cloud/ragdex/internal/usecase/rag"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// defaultVendor handles requests that do not name a provider.
const defaultVendor = "deepseek"

// ProviderClient is a vendor-bound, key-bound client covering both LLM
// capabilities the pipeline needs.
type ProviderClient interface {
	domain.ChatCompleter
	domain.Embedder
}

// Clients builds request-scoped provider clients. Credentials come from the
// caller and are never persisted.
type Clients interface {
	Client(ctx context.Context, vendor, apiKey string) (ProviderClient, error)
	EmbeddingClient(ctx context.Context, apiKey string) (ProviderClient, error)
}

// Pipeline runs the full RAG pipeline.
type Pipeline interface {
	Query(ctx context.Context, llm domain.ChatCompleter, embedder domain.Embedder, req raguc.Request) (domain.RAGResponse, error)
}

// Searcher exposes retrieval without generation for the search endpoint.
type Searcher interface {
	Expand(ctx context.Context, llm domain.ChatCompleter, query string) string
	FanOut(ctx context.Context, embedder domain.Embedder, subQueries []string) []domain.RetrievalResult
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements the HTTP API.
type Server struct {
	pipeline      Pipeline
	searcher      Searcher
	clients       Clients
	cfg           config.RAGConfig
	logger        *zap.Logger
	health        func() map[string]any
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, searcher Searcher, clients Clients, cfg config.RAGConfig, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		searcher: searcher,
		clients:  clients,
		cfg:      cfg,
		logger:   logger,
		health:   func() map[string]any { return map[string]any{"status": "healthy"} },
	}
	s.errorHandlers = []errorHandler{
		providerErrorHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrUnsupportedProvider, http.StatusBadRequest, "unsupported_provider"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, "dimension_mismatch"),
	}
	return s
}

// WithHealth replaces the health report builder.
func (s *Server) WithHealth(fn func() map[string]any) *Server {
	s.health = fn
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/rag/query", s.RAGQuery)
	r.Post("/v1/rag/search", s.HybridSearch)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type queryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	FastMode   bool   `json:"fast_mode,omitempty"`
	Provider   string `json:"provider,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
}

type searchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

type passageItem struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content"`
	Score       float64        `json:"score"`
	Method      string         `json:"method"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type analysisBody struct {
	OriginalQuery  string   `json:"original_query"`
	ExpandedQuery  string   `json:"expanded_query"`
	SubQueries     []string `json:"sub_queries"`
	TotalRetrieved int      `json:"total_retrieved"`
	AfterPruning   int      `json:"after_pruning"`
}

type metricsBody struct {
	StageTimingsMS   map[string]int64 `json:"stage_timings_ms"`
	PassagesBefore   int              `json:"passages_before"`
	PassagesAfter    int              `json:"passages_after"`
	CompressionRatio float64          `json:"compression_ratio"`
	ProcessingMS     int64            `json:"processing_ms"`
}

type queryResponse struct {
	Answer   string        `json:"answer"`
	Passages []passageItem `json:"passages"`
	Analysis analysisBody  `json:"analysis"`
	Metrics  metricsBody   `json:"metrics"`
}

type searchResponse struct {
	Items []passageItem `json:"items"`
	Total int           `json:"total"`
}

// RAGQuery handles POST /v1/rag/query.
func (s *Server) RAGQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	llm, embedder, ok := s.requestClients(w, r, req.Provider, req.APIKey)
	if !ok {
		return
	}

	resp, err := s.pipeline.Query(r.Context(), llm, embedder, raguc.Request{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		FastMode:   req.FastMode,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponseFromDomain(resp))
}

// HybridSearch handles POST /v1/rag/search: retrieval without generation.
func (s *Server) HybridSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.MaxPassages
	}

	llm, embedder, ok := s.requestClients(w, r, req.Provider, req.APIKey)
	if !ok {
		return
	}

	query := req.Query
	if s.cfg.ExpansionEnabled() {
		query = s.searcher.Expand(r.Context(), llm, req.Query)
	}
	raw := s.searcher.FanOut(r.Context(), embedder, []string{query})
	results := retrieval.Fuse(raw, limit)

	items := make([]passageItem, len(results))
	for i := range results {
		items[i] = passageItemFromDomain(results[i])
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// requestClients builds the chat and embedding clients for one request.
func (s *Server) requestClients(w http.ResponseWriter, r *http.Request, vendor, apiKey string) (domain.ChatCompleter, domain.Embedder, bool) {
	if vendor == "" {
		vendor = defaultVendor
	}

	llm, err := s.clients.Client(r.Context(), vendor, apiKey)
	if err != nil {
		s.handleDomainError(w, err)
		return nil, nil, false
	}
	// Embeddings always go through the configured embedding vendor with its
	// own configured key.
	embedder, err := s.clients.EmbeddingClient(r.Context(), "")
	if err != nil {
		s.handleDomainError(w, err)
		return nil, nil, false
	}
	return llm, embedder, true
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func queryResponseFromDomain(resp domain.RAGResponse) queryResponse {
	items := make([]passageItem, len(resp.Passages))
	for i := range resp.Passages {
		items[i] = passageItemFromDomain(resp.Passages[i])
	}

	timings := make(map[string]int64, len(resp.Metrics.StageTimings))
	for stage, d := range resp.Metrics.StageTimings {
		timings[string(stage)] = d.Milliseconds()
	}

	return queryResponse{
		Answer:   resp.Answer,
		Passages: items,
		Analysis: analysisBody{
			OriginalQuery:  resp.Analysis.OriginalQuery,
			ExpandedQuery:  resp.Analysis.ExpandedQuery,
			SubQueries:     resp.Analysis.SubQueries,
			TotalRetrieved: resp.Analysis.TotalRetrieved,
			AfterPruning:   resp.Analysis.AfterPruning,
		},
		Metrics: metricsBody{
			StageTimingsMS:   timings,
			PassagesBefore:   resp.Metrics.PassagesBefore,
			PassagesAfter:    resp.Metrics.PassagesAfter,
			CompressionRatio: resp.Metrics.CompressionRatio,
			ProcessingMS:     resp.Metrics.ProcessingTime.Milliseconds(),
		},
	}
}

func passageItemFromDomain(r domain.RetrievalResult) passageItem {
	return passageItem{
		ID:          r.Passage.ID,
		Title:       r.Passage.Title,
		Description: r.Passage.Description,
		Content:     r.Passage.Content,
		Score:       r.Score,
		Method:      string(r.Method()),
		Metadata:    r.Passage.Metadata,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrUnsupportedProvider,
		domain.ErrNotFound,
		domain.ErrDimensionMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// providerErrorHandler surfaces exhausted provider calls as 503 with the
// vendor name and remediation hint.
func providerErrorHandler(w http.ResponseWriter, err error) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	writeError(w, http.StatusServiceUnavailable, "provider_unavailable", pe.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
