package provider

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// vendorSpec is one vendor's resolved wire profile. Every OpenAI-compatible
// vendor is pure data; gemini is the only native protocol.
type vendorSpec struct {
	name           string
	baseURL        string
	chatModel      string
	embeddingModel string
	timeout        time.Duration
	retryBase      time.Duration
	native         bool // gemini protocol instead of OpenAI-compatible
}

// builtinVendors is the default profile table. Config entries override
// individual fields; unknown vendor names are rejected.
var builtinVendors = map[string]vendorSpec{
	"openai": {
		name:           "openai",
		chatModel:      "gpt-4o-mini",
		embeddingModel: "text-embedding-3-small",
		timeout:        60 * time.Second,
		retryBase:      time.Second,
	},
	"deepseek": {
		name:      "deepseek",
		baseURL:   "https://api.deepseek.com/v1",
		chatModel: "deepseek-chat",
		timeout:   120 * time.Second,
		retryBase: 3 * time.Second,
	},
	// The reasoning model is slow to first token and aggressive about rate
	// limits; give it a longer deadline and a tripled backoff base.
	"deepseek-r1": {
		name:      "deepseek-r1",
		baseURL:   "https://api.deepseek.com/v1",
		chatModel: "deepseek-reasoner",
		timeout:   180 * time.Second,
		retryBase: 9 * time.Second,
	},
	"zhipu": {
		name:           "zhipu",
		baseURL:        "https://open.bigmodel.cn/api/paas/v4/",
		chatModel:      "glm-4",
		embeddingModel: "embedding-2",
		timeout:        60 * time.Second,
		retryBase:      time.Second,
	},
	"doubao": {
		name:      "doubao",
		baseURL:   "https://ark.cn-beijing.volces.com/api/v3",
		chatModel: "doubao-pro-32k",
		timeout:   60 * time.Second,
		retryBase: time.Second,
	},
	"gemini": {
		name:           "gemini",
		chatModel:      "gemini-2.0-flash",
		embeddingModel: "gemini-embedding-001",
		timeout:        60 * time.Second,
		retryBase:      time.Second,
		native:         true,
	},
}

// resolveVendor merges the builtin profile with config overrides.
func resolveVendor(vendor string, overrides config.ProvidersConfig) (vendorSpec, error) {
	spec, ok := builtinVendors[vendor]
	if !ok {
		return vendorSpec{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, vendor)
	}

	if o, ok := overrides[vendor]; ok {
		if o.BaseURL != "" {
			spec.baseURL = o.BaseURL
		}
		if o.ChatModel != "" {
			spec.chatModel = o.ChatModel
		}
		if o.EmbeddingModel != "" {
			spec.embeddingModel = o.EmbeddingModel
		}
		if o.TimeoutSec > 0 {
			spec.timeout = time.Duration(o.TimeoutSec) * time.Second
		}
		if o.RetryBaseMS > 0 {
			spec.retryBase = time.Duration(o.RetryBaseMS) * time.Millisecond
		}
	}
	return spec, nil
}
