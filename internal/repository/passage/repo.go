package passage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Repo is an in-memory passage corpus standing in for the relational store
// owned by the external CRUD service. Read-mostly: writes happen at startup
// (snapshot load) or through ingestion, reads on every request.
type Repo struct {
	mu    sync.RWMutex
	byID  map[string]domain.Passage
	order []string
}

// New creates an empty passage repository.
func New() *Repo {
	return &Repo{byID: make(map[string]domain.Passage)}
}

// snapshotPassage is the JSON snapshot schema.
type snapshotPassage struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// LoadSnapshot reads a JSON array of passages into the repo. Existing entries
// with the same id are replaced.
func (r *Repo) LoadSnapshot(path string) (int, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var raw []snapshotPassage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse snapshot: %w", err)
	}

	passages := make([]domain.Passage, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" {
			return 0, fmt.Errorf("%w: snapshot passage without id", domain.ErrValidation)
		}
		passages = append(passages, domain.Passage{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Content:     p.Content,
			Metadata:    p.Metadata,
		})
	}

	r.PutAll(passages)
	return len(passages), nil
}

// Put stores or replaces one passage.
func (r *Repo) Put(p domain.Passage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(p)
}

// PutAll stores or replaces a batch of passages.
func (r *Repo) PutAll(passages []domain.Passage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range passages {
		r.putLocked(p)
	}
}

func (r *Repo) putLocked(p domain.Passage) {
	if _, exists := r.byID[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// Get fetches a passage by id.
func (r *Repo) Get(_ context.Context, id string) (domain.Passage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return domain.Passage{}, fmt.Errorf("passage %q: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// All returns all passages in insertion order.
func (r *Repo) All(_ context.Context) []domain.Passage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Passage, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of stored passages.
func (r *Repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
