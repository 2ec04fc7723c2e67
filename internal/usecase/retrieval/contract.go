package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/repository/vectorindex"
)

// VectorSearcher is the nearest-neighbor index consumed by the orchestrator.
type VectorSearcher interface {
	Search(query []float32, topK int, filters vectorindex.Filters) ([]vectorindex.Hit, error)
}

// LexicalSearcher is the keyword search consumed by the orchestrator.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error)
}

// PassageGetter resolves vector hits back to full passages.
type PassageGetter interface {
	Get(ctx context.Context, id string) (domain.Passage, error)
}
