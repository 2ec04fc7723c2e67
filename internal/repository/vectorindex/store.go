package vectorindex

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// defaultOverfetch is the filtered-search over-fetch multiplier.
const defaultOverfetch = 3

// Hit is a single nearest-neighbor match. Distance is cosine distance,
// ascending (lower = more similar).
type Hit struct {
	ID       string
	Distance float64
	Metadata map[string]any
}

// Store is a flat brute-force cosine-distance index with caller-supplied
// external ids and per-id metadata, persisted wholesale to a directory.
//
// Writes (Add, Delete, UpdateMetadata) rewrite the full persisted state and
// are serialized; reads take the shared lock so they never observe a
// half-written snapshot.
type Store struct {
	mu        sync.RWMutex
	dir       string
	dim       int // fixed by the first successful Add
	vectors   [][]float32
	posToID   []string
	idToPos   map[string]int
	metadata  map[string]map[string]any
	overfetch int
	logger    *zap.Logger
}

// Open loads the persisted index from dir if present, else starts empty.
// Idempotent.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		dir:       dir,
		idToPos:   make(map[string]int),
		metadata:  make(map[string]map[string]any),
		overfetch: defaultOverfetch,
		logger:    logger,
	}
	loaded, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("load index from %s: %w", dir, err)
	}
	if loaded {
		logger.Info("Loaded vector index",
			zap.String("dir", dir),
			zap.Int("vectors", len(s.vectors)),
			zap.Int("dimension", s.dim),
		)
	} else {
		logger.Info("Created empty vector index", zap.String("dir", dir))
	}
	return s, nil
}

// WithOverfetch sets the filtered-search over-fetch multiplier.
func (s *Store) WithOverfetch(factor int) *Store {
	if factor > 0 {
		s.overfetch = factor
	}
	return s
}

// Add appends vectors under caller-supplied external ids, merges per-id
// metadata, and persists the full index state before returning.
func (s *Store) Add(vectors [][]float32, ids []string, metadata []map[string]any) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors for %d ids", domain.ErrValidation, len(vectors), len(ids))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range vectors {
		if s.dim == 0 && len(s.vectors) == 0 {
			s.dim = len(v) // first insertion fixes the dimension
		}
		if len(v) != s.dim {
			return fmt.Errorf("vector %q has dimension %d, index requires %d: %w",
				ids[i], len(v), s.dim, domain.ErrDimensionMismatch)
		}
	}

	for i, id := range ids {
		if pos, ok := s.idToPos[id]; ok {
			// Re-adding an id replaces its vector in place.
			s.vectors[pos] = vectors[i]
		} else {
			s.idToPos[id] = len(s.vectors)
			s.posToID = append(s.posToID, id)
			s.vectors = append(s.vectors, vectors[i])
		}
		if metadata != nil && i < len(metadata) {
			s.mergeMetadataLocked(id, metadata[i])
		}
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	s.logger.Info("Added vectors",
		zap.Int("count", len(vectors)),
		zap.Int("total", len(s.vectors)),
	)
	return nil
}

// Search returns up to topK hits ordered by ascending cosine distance.
// With filters, over-fetches and applies post-hoc predicate filtering,
// stopping once topK matches accumulate. An empty index returns no hits.
func (s *Store) Search(query []float32, topK int, filters Filters) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query has dimension %d, index requires %d: %w",
			len(query), s.dim, domain.ErrDimensionMismatch)
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	fetch := topK
	if len(filters) > 0 {
		fetch = topK * s.overfetch
	}
	if fetch > len(s.vectors) {
		fetch = len(s.vectors)
	}

	type scored struct {
		pos      int
		distance float64
	}
	all := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		all[i] = scored{pos: i, distance: domain.CosineDistance(query, v)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].distance < all[j].distance })

	hits := make([]Hit, 0, topK)
	for _, c := range all[:fetch] {
		id := s.posToID[c.pos]
		meta := s.metadata[id]
		if len(filters) > 0 && !filters.Match(meta) {
			continue
		}
		hits = append(hits, Hit{ID: id, Distance: c.distance, Metadata: cloneMetadata(meta)})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

// Delete removes ids by rebuilding the index from the surviving vectors, then
// persists. Unknown ids are ignored. A flat index has no in-place delete.
func (s *Store) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	vectors := make([][]float32, 0, len(s.vectors))
	posToID := make([]string, 0, len(s.posToID))
	idToPos := make(map[string]int, len(s.idToPos))

	for pos, id := range s.posToID {
		if _, gone := drop[id]; gone {
			delete(s.metadata, id)
			continue
		}
		idToPos[id] = len(vectors)
		posToID = append(posToID, id)
		vectors = append(vectors, s.vectors[pos])
	}

	s.vectors = vectors
	s.posToID = posToID
	s.idToPos = idToPos

	if err := s.save(); err != nil {
		return fmt.Errorf("persist index after delete: %w", err)
	}

	s.logger.Info("Deleted vectors", zap.Int("requested", len(ids)), zap.Int("remaining", len(s.vectors)))
	return nil
}

// UpdateMetadata merge-updates the metadata record for id.
// Fails with ErrNotFound for unknown ids.
func (s *Store) UpdateMetadata(id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idToPos[id]; !ok {
		return fmt.Errorf("vector id %q: %w", id, domain.ErrNotFound)
	}
	s.mergeMetadataLocked(id, patch)

	if err := s.save(); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

// Contains reports whether id has a stored vector.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idToPos[id]
	return ok
}

// Count returns the number of stored vectors. 0 for an empty store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimension returns the fixed index dimension, 0 before the first Add.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

func (s *Store) mergeMetadataLocked(id string, patch map[string]any) {
	if patch == nil {
		return
	}
	m, ok := s.metadata[id]
	if !ok {
		m = make(map[string]any, len(patch))
		s.metadata[id] = m
	}
	for k, v := range patch {
		m[k] = v
	}
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
