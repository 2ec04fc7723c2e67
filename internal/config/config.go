package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Providers ProvidersConfig `yaml:"providers"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds flat vector index settings.
type IndexConfig struct {
	Dir             string `yaml:"dir"`              // directory for persisted index state
	OverfetchFactor int    `yaml:"overfetch_factor"` // filtered-search over-fetch multiplier
}

// CorpusConfig holds passage corpus settings.
type CorpusConfig struct {
	SnapshotPath string `yaml:"snapshot_path"` // optional JSON snapshot loaded at startup
}

// ProvidersConfig holds per-vendor settings keyed by vendor name
// (openai, deepseek, deepseek-r1, zhipu, doubao, gemini).
type ProvidersConfig map[string]VendorConfig

// VendorConfig holds one vendor's settings. APIKey is a default only —
// callers normally supply their own key per request.
type VendorConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	RetryBaseMS    int    `yaml:"retry_base_ms"`
}

// EmbeddingConfig holds embedding settings shared across vendors.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"`  // default vendor for embeddings
	Dimension       int    `yaml:"dimension"` // zero-vector dimension for blank texts
	BatchSize       int    `yaml:"batch_size"`
	BatchIntervalMS int    `yaml:"batch_interval_ms"` // inter-batch delay
}

// RAGConfig holds pipeline settings.
type RAGConfig struct {
	MaxPassages        int     `yaml:"max_passages"`        // fusion cap
	MinPassages        int     `yaml:"min_passages"`        // pruning floor
	RerankWindow       int     `yaml:"rerank_window"`       // LLM rerank head size
	ContextCap         int     `yaml:"context_cap"`         // passages in the generation context
	FastTopK           int     `yaml:"fast_top_k"`          // fast-path passage count
	CompressionRatio   float64 `yaml:"compression_ratio"`   // pruning target fraction
	QueryExpansion     *bool   `yaml:"query_expansion"`     // default true
	QueryDecomposition bool    `yaml:"query_decomposition"` // default false
	ContextPruning     bool    `yaml:"context_pruning"`     // default false
}

// ExpansionEnabled resolves the query_expansion flag (default true).
func (r RAGConfig) ExpansionEnabled() bool {
	return r.QueryExpansion == nil || *r.QueryExpansion
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation calls can take minutes on reasoning models.
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.Dir == "" {
		c.Index.Dir = "data/index"
	}
	if c.Index.OverfetchFactor <= 0 {
		c.Index.OverfetchFactor = 3
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.BatchIntervalMS <= 0 {
		c.Embedding.BatchIntervalMS = 100
	}
	if c.RAG.MaxPassages <= 0 {
		c.RAG.MaxPassages = 15
	}
	if c.RAG.MinPassages <= 0 {
		c.RAG.MinPassages = 3
	}
	if c.RAG.RerankWindow <= 0 {
		c.RAG.RerankWindow = 8
	}
	if c.RAG.ContextCap <= 0 {
		c.RAG.ContextCap = 10
	}
	if c.RAG.FastTopK <= 0 {
		c.RAG.FastTopK = 3
	}
	if c.RAG.CompressionRatio <= 0 || c.RAG.CompressionRatio > 1 {
		c.RAG.CompressionRatio = 0.5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("providers is required: configure at least one vendor")
	}
	if _, ok := c.Providers[c.Embedding.Provider]; !ok {
		return fmt.Errorf("embedding.provider %q is not configured under providers", c.Embedding.Provider)
	}
	for name, v := range c.Providers {
		if v.TimeoutSec < 0 {
			return fmt.Errorf("providers.%s.timeout_sec must not be negative", name)
		}
		if v.RetryBaseMS < 0 {
			return fmt.Errorf("providers.%s.retry_base_ms must not be negative", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
