package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Providers: ProvidersConfig{
			"gemini": {APIKey: "test-key"},
		},
		Embedding: EmbeddingConfig{Provider: "gemini"},
	}
}

func TestValidate_MissingProviders(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty providers")
	}
}

func TestValidate_UnknownEmbeddingProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "nebius"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}
	expected := `embedding.provider "nebius" is not configured under providers`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.RAG.MaxPassages != 15 {
		t.Errorf("expected max_passages default 15, got %d", cfg.RAG.MaxPassages)
	}
	if cfg.RAG.RerankWindow != 8 {
		t.Errorf("expected rerank_window default 8, got %d", cfg.RAG.RerankWindow)
	}
	if cfg.RAG.CompressionRatio != 0.5 {
		t.Errorf("expected compression_ratio default 0.5, got %f", cfg.RAG.CompressionRatio)
	}
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("expected batch_size default 100, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Index.OverfetchFactor != 3 {
		t.Errorf("expected overfetch_factor default 3, got %d", cfg.Index.OverfetchFactor)
	}
	if !cfg.RAG.ExpansionEnabled() {
		t.Error("expected query expansion enabled by default")
	}
	if cfg.RAG.QueryDecomposition {
		t.Error("expected query decomposition disabled by default")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("RAGDEX_TEST_KEY", "secret")
	defer os.Unsetenv("RAGDEX_TEST_KEY")

	in := []byte("api_key: ${RAGDEX_TEST_KEY}\nmodel: ${RAGDEX_TEST_MODEL:-gpt-4o}")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nmodel: gpt-4o" {
		t.Errorf("unexpected expansion: %q", out)
	}
}
