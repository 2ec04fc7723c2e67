// Package retrieval orchestrates hybrid passage retrieval: query expansion
// and decomposition through the LLM, concurrent fan-out of vector and lexical
// search per sub-query, and fusion of everything into one ranked list.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
)

// maxSubQueries caps decomposition fan-out.
const maxSubQueries = 4

// Service is the hybrid retrieval orchestrator.
type Service struct {
	index   VectorSearcher
	lexical LexicalSearcher
	corpus  PassageGetter
	cfg     config.RAGConfig
}

// New creates the retrieval orchestrator.
func New(index VectorSearcher, lexical LexicalSearcher, corpus PassageGetter, cfg config.RAGConfig) *Service {
	return &Service{index: index, lexical: lexical, corpus: corpus, cfg: cfg}
}

const expandPrompt = `You expand search queries for a retrieval system.
Given the user query, add closely related terms, synonyms and likely phrasings.
Reply with the additional terms only, on one line, no explanations.`

// Expand asks the LLM to broaden the query with related terms. The expansion
// is appended to the original query. Failures fall back to the original
// query silently; expansion is best-effort.
func (s *Service) Expand(ctx context.Context, llm domain.ChatCompleter, query string) string {
	resp, err := llm.ChatCompletion(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: expandPrompt},
		{Role: domain.RoleUser, Content: query},
	}, 0.3)
	if err != nil {
		logger.FromContext(ctx).Warn("query expansion failed, using original query", zap.Error(err))
		return query
	}

	extra := strings.TrimSpace(resp.Content)
	if extra == "" {
		return query
	}
	return query + " " + extra
}

const decomposePrompt = `You decompose complex search queries into simpler sub-queries.
Split the user query into 2-4 focused sub-queries that together cover it.
Reply with JSON only, in the form {"queries": ["...", "..."]}.`

// Decompose splits a complex query into sub-queries via the LLM. The original
// query is always included. Parse or call failures degrade to the original
// query alone.
func (s *Service) Decompose(ctx context.Context, llm domain.ChatCompleter, query string) []string {
	resp, err := llm.ChatCompletion(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: decomposePrompt},
		{Role: domain.RoleUser, Content: query},
	}, 0.3)
	if err != nil {
		logger.FromContext(ctx).Warn("query decomposition failed, using original query", zap.Error(err))
		return []string{query}
	}

	parsed, err := parseQueries(resp.Content)
	if err != nil {
		logger.FromContext(ctx).Warn("unparseable decomposition response, using original query",
			zap.Error(err), zap.String("response", resp.Content))
		return []string{query}
	}

	out := []string{query}
	seen := map[string]struct{}{normalizeQuery(query): {}}
	for _, q := range parsed {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := normalizeQuery(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == maxSubQueries {
			break
		}
	}
	return out
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// parseQueries extracts the {"queries": [...]} object from an LLM reply,
// tolerating surrounding prose and code fences.
func parseQueries(content string) ([]string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("parse queries: %w", err)
	}
	if len(parsed.Queries) == 0 {
		return nil, fmt.Errorf("empty queries array")
	}
	return parsed.Queries, nil
}

// FanOut runs vector and lexical search for every sub-query concurrently.
// A failing branch is logged and skipped; the fan-out succeeds as long as any
// branch delivers. Results are raw per-branch hits: the same passage may
// appear several times with different provenance, Fuse merges them.
func (s *Service) FanOut(ctx context.Context, embedder domain.Embedder, subQueries []string) []domain.RetrievalResult {
	log := logger.FromContext(ctx)
	topK := s.cfg.MaxPassages

	// One batched call vectorizes every sub-query. If it fails wholesale the
	// fan-out degrades to lexical-only.
	embeddings, err := embedder.GenerateEmbeddings(ctx, subQueries)
	if err != nil {
		log.Warn("sub-query embedding failed, lexical-only retrieval", zap.Error(err))
		embeddings = nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		raw []domain.RetrievalResult
	)
	collect := func(results []domain.RetrievalResult) {
		mu.Lock()
		raw = append(raw, results...)
		mu.Unlock()
	}

	for i, sub := range subQueries {
		if embeddings != nil && i < len(embeddings) {
			wg.Add(1)
			go func(sub string, vec []float32) {
				defer wg.Done()
				results, err := s.vectorBranch(ctx, sub, vec, topK)
				if err != nil {
					log.Warn("vector branch failed", zap.String("sub_query", sub), zap.Error(err))
					return
				}
				collect(results)
			}(sub, embeddings[i])
		}

		wg.Add(1)
		go func(sub string) {
			defer wg.Done()
			results, err := s.lexical.Search(ctx, sub, topK)
			if err != nil {
				log.Warn("lexical branch failed", zap.String("sub_query", sub), zap.Error(err))
				return
			}
			collect(results)
		}(sub)
	}
	wg.Wait()

	return raw
}

// VectorOnly is the fast path: one embedding, one index probe, no LLM stages.
func (s *Service) VectorOnly(ctx context.Context, embedder domain.Embedder, query string, topK int) ([]domain.RetrievalResult, error) {
	embeddings, err := embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.vectorBranch(ctx, query, embeddings[0], topK)
}

// vectorBranch probes the index and resolves hits to passages. Hits whose
// passage has vanished from the corpus are dropped with a warning.
func (s *Service) vectorBranch(ctx context.Context, subQuery string, vec []float32, topK int) ([]domain.RetrievalResult, error) {
	hits, err := s.index.Search(vec, topK, nil)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		p, err := s.corpus.Get(ctx, hit.ID)
		if err != nil {
			logger.FromContext(ctx).Warn("indexed passage missing from corpus", zap.String("id", hit.ID))
			continue
		}
		results = append(results, domain.RetrievalResult{
			Passage: p,
			Score:   domain.SimilarityFromDistance(hit.Distance),
			Provenance: []domain.Provenance{
				{SubQuery: subQuery, Method: domain.MethodVector},
			},
		})
	}
	return results, nil
}
