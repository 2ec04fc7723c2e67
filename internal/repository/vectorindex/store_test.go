package vectorindex

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t)

	if s.Count() != 0 {
		t.Errorf("expected count 0, got %d", s.Count())
	}

	hits, err := s.Search([]float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestSelfRetrieval(t *testing.T) {
	s := newTestStore(t)

	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	if err := s.Add(vectors, []string{"a", "b", "c"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.Search([]float32{0, 1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "b" {
		t.Errorf("expected self-retrieval top-1 'b', got %q", hits[0].ID)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("expected near-zero distance, got %f", hits[0].Distance)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Error("hits not in ascending distance order")
		}
	}
}

func TestDimensionGuard(t *testing.T) {
	s := newTestStore(t)

	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	if err := s.Add(vectors, []string{"a", "b", "c"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err := s.Add([][]float32{{1, 2, 3, 4, 5}}, []string{"d"}, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Count() != 3 {
		t.Errorf("expected count to remain 3, got %d", s.Count())
	}

	_, err = s.Search([]float32{1, 2}, 1, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	meta := []map[string]any{
		{"title": "first", "rating": 4.5},
		{"title": "second", "rating": 2.0},
	}
	if err := s.Add([][]float32{{1, 0}, {0, 1}}, []string{"p1", "p2"}, meta); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("expected 2 vectors after reload, got %d", reopened.Count())
	}
	if reopened.Dimension() != 2 {
		t.Errorf("expected dimension 2, got %d", reopened.Dimension())
	}

	hits, err := reopened.Search([]float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ID != "p1" {
		t.Errorf("expected p1, got %q", hits[0].ID)
	}
	if hits[0].Metadata["title"] != "first" {
		t.Errorf("metadata not restored: %v", hits[0].Metadata)
	}
}

func TestDeleteRebuilds(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add([][]float32{{1, 0}, {0, 1}, {1, 1}}, []string{"a", "b", "c"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Delete([]string{"b", "missing"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 after delete, got %d", s.Count())
	}

	hits, err := s.Search([]float32{0, 1}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.ID == "b" {
			t.Error("deleted id still returned")
		}
	}
}

func TestUpdateMetadata(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add([][]float32{{1, 0}}, []string{"a"}, []map[string]any{{"title": "old", "kept": true}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.UpdateMetadata("a", map[string]any{"title": "new"}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	hits, _ := s.Search([]float32{1, 0}, 1, nil)
	if hits[0].Metadata["title"] != "new" || hits[0].Metadata["kept"] != true {
		t.Errorf("expected merged metadata, got %v", hits[0].Metadata)
	}

	err := s.UpdateMetadata("unknown", map[string]any{"x": 1})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFilteredSearch(t *testing.T) {
	s := newTestStore(t)

	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0.8, 0.2}, {0, 1}}
	ids := []string{"cheap", "mid", "premium", "far"}
	meta := []map[string]any{
		{"category": "soup", "price": 5.0},
		{"category": "salad", "price": 12.0},
		{"category": "soup", "price": 30.0},
		{"category": "soup", "price": 6.0},
	}
	if err := s.Add(vectors, ids, meta); err != nil {
		t.Fatalf("Add: %v", err)
	}

	lte := 10.0
	hits, err := s.Search([]float32{1, 0}, 2, Filters{
		"category": Eq("soup"),
		"price":    InRange(Range{LTE: &lte}),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 filtered hits, got %d", len(hits))
	}
	if hits[0].ID != "cheap" {
		t.Errorf("expected 'cheap' first, got %q", hits[0].ID)
	}
	if hits[1].ID != "far" {
		t.Errorf("expected 'far' second, got %q", hits[1].ID)
	}
}

func TestReAddReplacesVector(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add([][]float32{{1, 0}}, []string{"a"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add([][]float32{{0, 1}}, []string{"a"}, nil); err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 vector, got %d", s.Count())
	}

	hits, _ := s.Search([]float32{0, 1}, 1, nil)
	if hits[0].Distance > 1e-6 {
		t.Errorf("expected replaced vector to match, distance %f", hits[0].Distance)
	}
}
