package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// previewChars bounds how much of each passage the reranker sees.
const previewChars = 200

const rerankPrompt = `You rank search results by relevance to a query.
For each numbered passage, give a relevance score from 0 (irrelevant) to 10 (perfect match).
Reply with JSON only, in the form {"scores": [s1, s2, ...]}, one score per passage in order.`

// rerank asks the LLM to re-score the head of the ranking. Only the top
// window passages are sent; the tail keeps its fusion order. Any failure
// degrades to the input ranking untouched.
func (s *Service) rerank(ctx context.Context, llm domain.ChatCompleter, query string, results []domain.RetrievalResult) []domain.RetrievalResult {
	window := s.cfg.RerankWindow
	if len(results) < 2 || window < 2 {
		return results
	}
	if window > len(results) {
		window = len(results)
	}

	head := results[:window]
	resp, err := llm.ChatCompletion(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: rerankPrompt},
		{Role: domain.RoleUser, Content: rerankInput(query, head)},
	}, 0)
	if err != nil {
		s.degradeRerank(ctx, err, "rerank call failed")
		return results
	}

	scores, err := parseScores(resp.Content, window)
	if err != nil {
		s.degradeRerank(ctx, err, "unparseable rerank response")
		return results
	}

	reranked := make([]domain.RetrievalResult, len(results))
	copy(reranked, results)
	for i := range window {
		score := scores[i] / 10
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		reranked[i].Score = score
	}
	sort.SliceStable(reranked[:window], func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}

func (s *Service) degradeRerank(ctx context.Context, err error, msg string) {
	metrics.PipelineStageFallbacksTotal.WithLabelValues(string(domain.StageReranking)).Inc()
	logger.FromContext(ctx).Warn(msg+", keeping fusion order", zap.Error(err))
}

func rerankInput(query string, head []domain.RetrievalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, r := range head {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.Passage.Title, preview(r.Passage.Content))
	}
	return b.String()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewChars {
		return content
	}
	return string(runes[:previewChars]) + "..."
}

// parseScores extracts {"scores": [...]} and requires exactly want scores,
// positional.
func parseScores(content string, want int) ([]float64, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}
	if len(parsed.Scores) != want {
		return nil, fmt.Errorf("got %d scores for %d passages", len(parsed.Scores), want)
	}
	return parsed.Scores, nil
}
