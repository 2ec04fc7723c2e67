// Package gemini is the one genuinely distinct provider protocol: Google's
// native generative API. Everything else rides the OpenAI-compatible shape.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Config holds the Gemini wire settings.
type Config struct {
	ChatModel      string
	EmbeddingModel string
	Dimension      int // embedding output dimensionality
}

// Client talks to the Gemini API with one caller-supplied key.
type Client struct {
	cfg    Config
	client *genai.Client
}

// NewClient creates a Gemini client with the given API key.
func NewClient(ctx context.Context, cfg Config, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %w", err)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// ChatCompletion issues one generation call. Gemini has no system role and
// rejects consecutive same-role turns, so history is normalized first.
func (c *Client) ChatCompletion(ctx context.Context, messages []domain.ChatMessage, temperature float32) (domain.ChatResponse, error) {
	contents := normalizeHistory(messages)
	if len(contents) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("%w: no user content in chat history", domain.ErrValidation)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ChatModel, contents, cfg)
	if err != nil {
		return domain.ChatResponse{}, classify(ctx, "chat completion", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return domain.ChatResponse{}, fmt.Errorf("empty generation response: %w", domain.ErrProviderNetwork)
	}

	out := domain.ChatResponse{Content: text.String(), Model: c.cfg.ChatModel}
	if resp.UsageMetadata != nil {
		out.Usage = domain.ChatUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// EmbedBatch vectorizes one batch of texts in a single API call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if c.cfg.Dimension > 0 {
		dim := int32(c.cfg.Dimension)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	result, err := c.client.Models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents, cfg)
	if err != nil {
		return nil, classify(ctx, "embeddings", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			got, len(texts), domain.ErrProviderNetwork)
	}

	out := make([][]float32, len(texts))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// normalizeHistory converts chat turns to Gemini contents: the system prompt
// is merged into the first user turn, consecutive same-role turns are merged
// into one.
func normalizeHistory(messages []domain.ChatMessage) []*genai.Content {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(messages))
	systemPending := false

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			system.WriteString(msg.Content)
			system.WriteString("\n\n")
			systemPending = true
			continue
		}

		content := msg.Content
		role := genai.RoleUser
		if msg.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}

		if systemPending && role == genai.RoleUser {
			content = system.String() + content
			systemPending = false
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(content))
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(content)},
		})
	}

	// System prompt with no user turn to attach to becomes the sole user turn.
	if systemPending && len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(system.String(), genai.RoleUser))
	}
	return contents
}

// classify maps genai errors onto the shared provider error taxonomy.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini %s: %w", op, domain.ErrProviderTimeout)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini %s: status %d: %s: %w", op, apiErr.Code, apiErr.Message,
			sentinelForStatus(apiErr.Code))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("gemini %s: %w", op, domain.ErrProviderTimeout)
	}

	return fmt.Errorf("gemini %s: %v: %w", op, err, domain.ErrProviderNetwork)
}

func sentinelForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return domain.ErrProviderAuth
	case status == 429:
		return domain.ErrProviderBusy
	case status >= 500:
		return domain.ErrProviderBusy
	default:
		return domain.ErrProviderNetwork
	}
}
