// Package provider is the gateway in front of every LLM vendor. It resolves
// vendor profiles, builds per-request transports, applies deadlines, retries
// transient failures and normalizes everything that escapes into a
// ProviderError the HTTP surface can map.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/transport/gemini"
	"github.com/kailas-cloud/ragdex/internal/transport/openaicompat"
)

// transport is one vendor's wire client. Implemented by the OpenAI-compatible
// client and the native gemini client.
type transport interface {
	ChatCompletion(ctx context.Context, messages []domain.ChatMessage, temperature float32) (domain.ChatResponse, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// transportFactory builds a transport for a resolved vendor. Swapped in tests.
type transportFactory func(ctx context.Context, spec vendorSpec, dimension int, apiKey string) (transport, error)

// Gateway hands out vendor-bound clients. The embedding rate limiter is
// shared so concurrent requests cannot stampede a vendor's embedding API.
type Gateway struct {
	cfg          config.Config
	logger       *zap.Logger
	limiter      *rate.Limiter
	newTransport transportFactory
}

// NewGateway creates the provider gateway.
func NewGateway(cfg config.Config, logger *zap.Logger) *Gateway {
	interval := time.Duration(cfg.Embedding.BatchIntervalMS) * time.Millisecond
	return &Gateway{
		cfg:          cfg,
		logger:       logger,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		newTransport: buildTransport,
	}
}

func buildTransport(ctx context.Context, spec vendorSpec, dimension int, apiKey string) (transport, error) {
	if spec.native {
		return gemini.NewClient(ctx, gemini.Config{
			ChatModel:      spec.chatModel,
			EmbeddingModel: spec.embeddingModel,
			Dimension:      dimension,
		}, apiKey)
	}
	return openaicompat.NewClient(openaicompat.Config{
		Vendor:         spec.name,
		BaseURL:        spec.baseURL,
		ChatModel:      spec.chatModel,
		EmbeddingModel: spec.embeddingModel,
	}, apiKey), nil
}

// Client is a vendor-bound, key-bound view of the gateway. Construction is
// cheap; one is built per request.
type Client struct {
	gw   *Gateway
	spec vendorSpec
	tr   transport
}

var _ domain.ChatCompleter = (*Client)(nil)
var _ domain.Embedder = (*Client)(nil)

// Client resolves the vendor and binds the API key. An empty apiKey falls
// back to the vendor's configured default key.
func (g *Gateway) Client(ctx context.Context, vendor, apiKey string) (*Client, error) {
	spec, err := resolveVendor(vendor, g.cfg.Providers)
	if err != nil {
		return nil, err
	}

	if apiKey == "" {
		apiKey = g.cfg.Providers[vendor].APIKey
	}
	if apiKey == "" {
		return nil, domain.NewProviderError(vendor, domain.ErrProviderAuth, "check your API key")
	}

	tr, err := g.newTransport(ctx, spec, g.cfg.Embedding.Dimension, apiKey)
	if err != nil {
		return nil, domain.NewProviderError(vendor, err, "try another provider")
	}
	return &Client{gw: g, spec: spec, tr: tr}, nil
}

// EmbeddingClient binds the configured default embedding vendor.
func (g *Gateway) EmbeddingClient(ctx context.Context, apiKey string) (*Client, error) {
	return g.Client(ctx, g.cfg.Embedding.Provider, apiKey)
}

// Vendor returns the bound vendor name.
func (c *Client) Vendor() string { return c.spec.name }

// ChatCompletion runs one chat completion with the vendor deadline and retry
// policy applied.
func (c *Client) ChatCompletion(ctx context.Context, messages []domain.ChatMessage, temperature float32) (domain.ChatResponse, error) {
	start := time.Now()

	var resp domain.ChatResponse
	err := withRetry(ctx, c.gw.logger, c.spec.name, c.spec.retryBase, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.spec.timeout)
		defer cancel()

		var callErr error
		resp, callErr = c.tr.ChatCompletion(callCtx, messages, temperature)
		return callErr
	})

	metrics.ProviderRequestDuration.WithLabelValues(c.spec.name, "chat").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.spec.name, "chat", "error").Inc()
		return domain.ChatResponse{}, c.terminal(err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(c.spec.name, "chat", "ok").Inc()
	metrics.ProviderTokensTotal.WithLabelValues(c.spec.name, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(c.spec.name, "completion").Add(float64(resp.Usage.CompletionTokens))
	metrics.ProviderTokensTotal.WithLabelValues(c.spec.name, "total").Add(float64(resp.Usage.TotalTokens))
	return resp, nil
}

// GenerateEmbeddings vectorizes texts in rate-limited batches. Blank texts
// never reach the vendor; they yield zero vectors of the configured dimension.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Collect the non-blank texts and remember where they belong.
	payload := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if isBlank(t) {
			out[i] = make([]float32, c.gw.cfg.Embedding.Dimension)
			continue
		}
		payload = append(payload, t)
		positions = append(positions, i)
	}
	if len(payload) == 0 {
		return out, nil
	}

	batchSize := c.gw.cfg.Embedding.BatchSize
	batches := int(math.Ceil(float64(len(payload)) / float64(batchSize)))
	start := time.Now()

	for b := 0; b < batches; b++ {
		lo := b * batchSize
		hi := min(lo+batchSize, len(payload))

		if err := c.gw.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limiter: %w", err)
		}

		var vectors [][]float32
		err := withRetry(ctx, c.gw.logger, c.spec.name, c.spec.retryBase, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.spec.timeout)
			defer cancel()

			var callErr error
			vectors, callErr = c.tr.EmbedBatch(callCtx, payload[lo:hi])
			return callErr
		})
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(c.spec.name, "embed", "error").Inc()
			return nil, c.terminal(err)
		}
		metrics.ProviderRequestsTotal.WithLabelValues(c.spec.name, "embed", "ok").Inc()

		for i, v := range vectors {
			out[positions[lo+i]] = v
		}
	}

	metrics.ProviderRequestDuration.WithLabelValues(c.spec.name, "embed").Observe(time.Since(start).Seconds())
	return out, nil
}

// terminal wraps an exhausted or fatal provider error with the vendor name
// and a remediation hint.
func (c *Client) terminal(err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	hint := "try another provider"
	switch {
	case errors.Is(err, domain.ErrProviderAuth):
		hint = "check your API key"
	case domain.Retryable(err):
		hint = "provider is busy, retry later or switch providers"
	}
	return domain.NewProviderError(c.spec.name, err, hint)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
