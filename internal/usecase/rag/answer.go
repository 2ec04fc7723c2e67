package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// NoContextAnswer is returned when retrieval surfaces nothing at all; the
// LLM is not consulted without grounding material.
const NoContextAnswer = "I could not find relevant information for your question in the available passages."

const answerPrompt = `You answer questions using only the provided context passages.
Ground every claim in the passages and name the passage titles you drew from.
If the passages do not contain enough information to answer, say so honestly instead of guessing.`

// generate synthesizes the final answer from the top context passages.
func (s *Service) generate(ctx context.Context, llm domain.ChatCompleter, query string, results []domain.RetrievalResult) (string, error) {
	if len(results) == 0 {
		return NoContextAnswer, nil
	}

	contextCap := s.cfg.ContextCap
	if contextCap > len(results) {
		contextCap = len(results)
	}

	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, r := range results[:contextCap] {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Passage.Title)
		if r.Passage.Description != "" {
			fmt.Fprintf(&b, "%s\n", r.Passage.Description)
		}
		fmt.Fprintf(&b, "%s\n\n", r.Passage.Content)
	}
	fmt.Fprintf(&b, "Question: %s", query)

	resp, err := llm.ChatCompletion(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: answerPrompt},
		{Role: domain.RoleUser, Content: b.String()},
	}, 0.7)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("empty answer from model: %w", domain.ErrPipeline)
	}
	return answer, nil
}
