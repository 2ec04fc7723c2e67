package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestRerank_ReordersHead(t *testing.T) {
	llm := &mockChat{completionFunc: func(_ context.Context, _ []domain.ChatMessage, _ float32) (domain.ChatResponse, error) {
		return domain.ChatResponse{Content: `{"scores": [1, 10, 4]}`}, nil
	}}

	svc := New(nil, pipelineConfig())
	got := svc.rerank(context.Background(), llm, "q", passages(3))

	wantOrder := []string{"b", "c", "a"}
	for i, want := range wantOrder {
		if got[i].Passage.ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Passage.ID, want)
		}
	}
	if got[0].Score != 1.0 {
		t.Errorf("score 10 must normalize to 1.0, got %f", got[0].Score)
	}
}

func TestRerank_TailKeepsFusionOrder(t *testing.T) {
	llm := &mockChat{completionFunc: func(_ context.Context, messages []domain.ChatMessage, _ float32) (domain.ChatResponse, error) {
		// exactly 8 numbered passages must be shown
		if n := strings.Count(messages[1].Content, ". Passage:"); n != 8 {
			t.Errorf("expected 8 passages in prompt, got %d", n)
		}
		return domain.ChatResponse{Content: `{"scores": [1, 2, 3, 4, 5, 6, 7, 8]}`}, nil
	}}

	svc := New(nil, pipelineConfig())
	got := svc.rerank(context.Background(), llm, "q", passages(10))

	if len(got) != 10 {
		t.Fatalf("rerank must not drop passages, got %d", len(got))
	}
	// the two beyond the window stay at the back, untouched
	if got[8].Passage.ID != "i" || got[9].Passage.ID != "j" {
		t.Errorf("tail reordered: %s, %s", got[8].Passage.ID, got[9].Passage.ID)
	}
}

func TestRerank_MalformedResponseDegrades(t *testing.T) {
	for _, content := range []string{
		"not json",
		`{"scores": [1, 2]}`, // wrong count for 3 passages
		`{"scores": "high"}`,
	} {
		llm := &mockChat{completionFunc: func(_ context.Context, _ []domain.ChatMessage, _ float32) (domain.ChatResponse, error) {
			return domain.ChatResponse{Content: content}, nil
		}}

		svc := New(nil, pipelineConfig())
		input := passages(3)
		got := svc.rerank(context.Background(), llm, "q", input)

		for i := range input {
			if got[i].Passage.ID != input[i].Passage.ID {
				t.Errorf("content %q: order changed at %d", content, i)
			}
		}
	}
}

func TestRerank_CallFailureDegrades(t *testing.T) {
	llm := &mockChat{completionFunc: func(_ context.Context, _ []domain.ChatMessage, _ float32) (domain.ChatResponse, error) {
		return domain.ChatResponse{}, domain.ErrProviderTimeout
	}}

	svc := New(nil, pipelineConfig())
	input := passages(3)
	got := svc.rerank(context.Background(), llm, "q", input)

	if got[0].Passage.ID != "a" || got[0].Score != input[0].Score {
		t.Error("failed rerank must keep input untouched")
	}
}

func TestRerank_SkipsTrivialInput(t *testing.T) {
	llm := &mockChat{completionFunc: func(_ context.Context, _ []domain.ChatMessage, _ float32) (domain.ChatResponse, error) {
		t.Fatal("no rerank call expected for a single passage")
		return domain.ChatResponse{}, nil
	}}

	svc := New(nil, pipelineConfig())
	got := svc.rerank(context.Background(), llm, "q", passages(1))
	if len(got) != 1 {
		t.Errorf("expected passthrough, got %d", len(got))
	}
}

func TestPreview_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := preview(long)
	if len([]rune(got)) != previewChars+3 {
		t.Errorf("preview length %d, want %d", len([]rune(got)), previewChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix")
	}

	if preview("short") != "short" {
		t.Error("short content must pass through")
	}
}
