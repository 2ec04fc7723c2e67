package lexical

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

type staticCorpus []domain.Passage

func (c staticCorpus) All(_ context.Context) []domain.Passage { return c }

func TestTerms(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"How do I make chicken soup?", []string{"make", "chicken", "soup"}},
		{"THE Best Pasta", []string{"best", "pasta"}},
		{"a an the", []string{}},
		{"", []string{}},
	}

	for _, tc := range cases {
		got := Terms(tc.query)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Terms(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestSearch_RanksTitleMatchFirst(t *testing.T) {
	passages := staticCorpus{
		{ID: "r1", Title: "Classic Chicken Soup", Description: "a warming chicken broth", Content: "simmer chicken with vegetables"},
	}
	for i := 0; i < 9; i++ {
		passages = append(passages, domain.Passage{
			ID:      fmt.Sprintf("u%d", i),
			Title:   "Chocolate Brownies",
			Content: "melt butter and sugar",
		})
	}

	svc := NewService(passages)
	results, err := svc.Search(context.Background(), "chicken soup", 5)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 1 {
		t.Fatalf("expected only the matching passage, got %d results", len(results))
	}
	if results[0].Passage.ID != "r1" {
		t.Errorf("expected r1 first, got %s", results[0].Passage.ID)
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Errorf("score %f out of (0,1]", results[0].Score)
	}
}

func TestSearch_ScoreFraction(t *testing.T) {
	svc := NewService(staticCorpus{
		{ID: "r1", Title: "chicken soup", Description: "chicken", Content: "soup"},
	})

	results, err := svc.Search(context.Background(), "chicken soup", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatal("expected one result")
	}

	// 2 terms x 3 fields = 6 slots; chicken matches title+description,
	// soup matches title+content.
	want := 4.0 / 6.0
	if results[0].Score != want {
		t.Errorf("score = %f, want %f", results[0].Score, want)
	}
}

func TestSearch_ExcludesZeroScores(t *testing.T) {
	svc := NewService(staticCorpus{
		{ID: "r1", Title: "Lemon Tart", Content: "pastry and lemon curd"},
	})

	results, err := svc.Search(context.Background(), "chicken soup", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearch_TopKCap(t *testing.T) {
	corpus := make(staticCorpus, 0, 8)
	for i := 0; i < 8; i++ {
		corpus = append(corpus, domain.Passage{
			ID:    fmt.Sprintf("r%d", i),
			Title: "tomato pasta",
		})
	}

	svc := NewService(corpus)
	results, err := svc.Search(context.Background(), "tomato", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearch_StopwordOnlyQuery(t *testing.T) {
	svc := NewService(staticCorpus{{ID: "r1", Title: "the a an"}})

	results, err := svc.Search(context.Background(), "the a an", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("stopword-only query must return nothing, got %d", len(results))
	}
}
