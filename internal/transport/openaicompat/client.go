// Package openaicompat is the single data-driven client for every vendor
// speaking the OpenAI-compatible REST shape (openai, deepseek, deepseek-r1,
// zhipu, doubao). Vendors differ only in base URL, models and timing — all
// configuration, no per-vendor code.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Config holds one vendor's wire settings.
type Config struct {
	Vendor         string
	BaseURL        string // empty = api.openai.com
	ChatModel      string
	EmbeddingModel string
}

// Client talks to one OpenAI-compatible vendor with one caller-supplied key.
// Construction is cheap; the gateway builds one per request.
type Client struct {
	cfg    Config
	client *openai.Client
}

// NewClient creates a client for the vendor with the given API key.
func NewClient(cfg Config, apiKey string) *Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

// ChatCompletion issues one chat completion call.
func (c *Client) ChatCompletion(ctx context.Context, messages []domain.ChatMessage, temperature float32) (domain.ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: temperature,
		Messages:    toOpenAIMessages(messages),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.ChatResponse{}, classify(ctx, c.cfg.Vendor, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("empty chat response from %s: %w", c.cfg.Vendor, domain.ErrProviderNetwork)
	}

	return domain.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: domain.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// EmbedBatch vectorizes one batch of texts in a single API call.
// Output length equals input length and preserves order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean := make([]string, len(texts))
	for i, t := range texts {
		clean[i] = strings.TrimSpace(strings.ReplaceAll(t, "\n", " "))
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          clean,
		Model:          openai.EmbeddingModel(c.cfg.EmbeddingModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, classify(ctx, c.cfg.Vendor, "embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			len(resp.Data), len(texts), domain.ErrProviderNetwork)
	}

	// The API is documented to return data in input order; Index is
	// authoritative when present.
	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		pos := d.Index
		if pos < 0 || pos >= len(out) {
			pos = i
		}
		out[pos] = d.Embedding
	}
	return out, nil
}

// classify maps transport errors onto the shared provider error taxonomy.
func classify(ctx context.Context, vendor, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", vendor, op, domain.ErrProviderTimeout)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s %s: status %d: %s: %w", vendor, op, apiErr.HTTPStatusCode, apiErr.Message,
			sentinelForStatus(apiErr.HTTPStatusCode))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s %s: status %d: %s: %w", vendor, op, reqErr.HTTPStatusCode, detail,
			sentinelForStatus(reqErr.HTTPStatusCode))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s %s: %w", vendor, op, domain.ErrProviderTimeout)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %v: %w", vendor, op, urlErr, domain.ErrProviderNetwork)
	}

	return fmt.Errorf("%s %s: %v: %w", vendor, op, err, domain.ErrProviderNetwork)
}

func sentinelForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return domain.ErrProviderAuth
	case status == 429:
		return domain.ErrProviderBusy
	case status == 408:
		return domain.ErrProviderTimeout
	case status >= 500:
		return domain.ErrProviderBusy
	default:
		return domain.ErrProviderNetwork
	}
}

// extractDetail extracts the "detail" field some vendors put in JSON error bodies.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
