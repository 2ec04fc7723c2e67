package rag

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// prune drops the passages least similar to the query, keeping at least
// MinPassages and at most ceil(count * CompressionRatio). Similarity is
// measured on embeddings, computed on demand for passages that lack one.
// Failures degrade to a plain head truncation at the target size.
func (s *Service) prune(ctx context.Context, embedder domain.Embedder, query string, results []domain.RetrievalResult) []domain.RetrievalResult {
	target := pruneTarget(len(results), s.cfg.MinPassages, s.cfg.CompressionRatio)
	if len(results) <= target {
		return results
	}

	queryVec, passageVecs, err := s.pruneEmbeddings(ctx, embedder, query, results)
	if err != nil {
		metrics.PipelineStageFallbacksTotal.WithLabelValues(string(domain.StagePruning)).Inc()
		logger.FromContext(ctx).Warn("pruning embeddings failed, truncating instead", zap.Error(err))
		return results[:target]
	}

	type scored struct {
		idx        int
		similarity float64
	}
	ranked := make([]scored, len(results))
	for i := range results {
		ranked[i] = scored{idx: i, similarity: domain.Similarity(queryVec, passageVecs[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].similarity > ranked[j].similarity })

	// Keep the most similar passages, in their original ranking order.
	keep := make(map[int]struct{}, target)
	for _, r := range ranked[:target] {
		keep[r.idx] = struct{}{}
	}
	pruned := make([]domain.RetrievalResult, 0, target)
	for i, r := range results {
		if _, ok := keep[i]; ok {
			pruned = append(pruned, r)
		}
	}
	return pruned
}

// pruneTarget is max(minimum, ceil(count * ratio)).
func pruneTarget(count, minimum int, ratio float64) int {
	target := int(math.Ceil(float64(count) * ratio))
	if target < minimum {
		target = minimum
	}
	return target
}

// pruneEmbeddings vectorizes the query and every passage missing a stored
// embedding in one batched call.
func (s *Service) pruneEmbeddings(ctx context.Context, embedder domain.Embedder, query string, results []domain.RetrievalResult) ([]float32, [][]float32, error) {
	texts := []string{query}
	positions := []int{-1}
	for i, r := range results {
		if r.Passage.Embedding == nil {
			texts = append(texts, r.Passage.Content)
			positions = append(positions, i)
		}
	}

	vectors, err := embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	passageVecs := make([][]float32, len(results))
	for i, r := range results {
		passageVecs[i] = r.Passage.Embedding
	}
	for j, pos := range positions {
		if pos >= 0 {
			passageVecs[pos] = vectors[j]
		}
	}
	return vectors[0], passageVecs, nil
}
