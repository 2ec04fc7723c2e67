package retrieval

import (
	"math"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func vectorResult(p domain.Passage, score float64, subQuery string) domain.RetrievalResult {
	return domain.RetrievalResult{
		Passage: p, Score: score,
		Provenance: []domain.Provenance{{SubQuery: subQuery, Method: domain.MethodVector}},
	}
}

func lexicalResult(p domain.Passage, score float64, subQuery string) domain.RetrievalResult {
	return domain.RetrievalResult{
		Passage: p, Score: score,
		Provenance: []domain.Provenance{{SubQuery: subQuery, Method: domain.MethodLexical}},
	}
}

func TestFuse_AveragesWhenBothMethodsAgree(t *testing.T) {
	soup := domain.Passage{ID: "r1", Title: "Chicken Soup", Content: "simmer"}

	fused := Fuse([]domain.RetrievalResult{
		vectorResult(soup, 0.9, "q1"),
		lexicalResult(soup, 0.5, "q1"),
	}, 10)

	if len(fused) != 1 {
		t.Fatalf("expected 1 fused result, got %d", len(fused))
	}
	if math.Abs(fused[0].Score-0.7) > 1e-9 {
		t.Errorf("score = %f, want 0.7", fused[0].Score)
	}
	if fused[0].Method() != domain.MethodHybrid {
		t.Errorf("method = %s, want hybrid", fused[0].Method())
	}
	if len(fused[0].Provenance) != 2 {
		t.Errorf("provenance not accumulated: %v", fused[0].Provenance)
	}
}

func TestFuse_KeepsBestScorePerMethod(t *testing.T) {
	soup := domain.Passage{ID: "r1", Title: "Chicken Soup", Content: "simmer"}

	fused := Fuse([]domain.RetrievalResult{
		vectorResult(soup, 0.6, "q1"),
		vectorResult(soup, 0.8, "q2"),
	}, 10)

	if len(fused) != 1 {
		t.Fatalf("expected 1 fused result, got %d", len(fused))
	}
	if fused[0].Score != 0.8 {
		t.Errorf("score = %f, want best 0.8", fused[0].Score)
	}
	if fused[0].Method() != domain.MethodVector {
		t.Errorf("single-method result must stay %s, got %s", domain.MethodVector, fused[0].Method())
	}
}

func TestFuse_DedupByContentNotID(t *testing.T) {
	// same text under two ids: one logical passage
	a := domain.Passage{ID: "r1", Title: "Chicken Soup", Content: "simmer"}
	b := domain.Passage{ID: "r1-copy", Title: "Chicken Soup", Content: "simmer"}

	fused := Fuse([]domain.RetrievalResult{
		vectorResult(a, 0.7, "q1"),
		vectorResult(b, 0.6, "q2"),
	}, 10)

	if len(fused) != 1 {
		t.Errorf("identical content must collapse, got %d results", len(fused))
	}
}

func TestFuse_SortsDescendingAndCaps(t *testing.T) {
	raw := []domain.RetrievalResult{
		vectorResult(domain.Passage{ID: "low", Title: "low"}, 0.2, "q"),
		vectorResult(domain.Passage{ID: "high", Title: "high"}, 0.9, "q"),
		vectorResult(domain.Passage{ID: "mid", Title: "mid"}, 0.5, "q"),
	}

	fused := Fuse(raw, 2)
	if len(fused) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(fused))
	}
	if fused[0].Passage.ID != "high" || fused[1].Passage.ID != "mid" {
		t.Errorf("wrong order: %s, %s", fused[0].Passage.ID, fused[1].Passage.ID)
	}
}

func TestFuse_Empty(t *testing.T) {
	if fused := Fuse(nil, 10); len(fused) != 0 {
		t.Errorf("expected empty fusion, got %v", fused)
	}
}
