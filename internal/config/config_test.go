package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Models: ModelsConfig{
			BaseURL: "http://localhost:11434/v1",
			Embedding: EmbeddingConfig{
				Model:      "nomic-embed-text",
				Dimensions: 768,
			},
			Generation: GenerationConfig{
				Model: "llama3.2",
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Models.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_InvalidDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Models.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestValidate_OverlapTooLarge(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.OverlapPercent = 60

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= 50")
	}
}

func TestValidate_TopKOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.DefaultTopK = 30
	cfg.Retrieval.MaxTopK = 20

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_top_k exceeds max_top_k")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Chunking.TargetChars != 800 {
		t.Errorf("expected TargetChars=800, got %d", cfg.Chunking.TargetChars)
	}
	if cfg.Chunking.OverlapPercent != 15 {
		t.Errorf("expected OverlapPercent=15, got %d", cfg.Chunking.OverlapPercent)
	}
	if cfg.Retrieval.DefaultTopK != 5 {
		t.Errorf("expected DefaultTopK=5, got %d", cfg.Retrieval.DefaultTopK)
	}
	if cfg.Retrieval.MinSimilarity != 0.35 {
		t.Errorf("expected MinSimilarity=0.35, got %f", cfg.Retrieval.MinSimilarity)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Ingest.Workers)
	}
	if cfg.Models.Generation.TimeoutSec != 60 {
		t.Errorf("expected generation TimeoutSec=60, got %d", cfg.Models.Generation.TimeoutSec)
	}
	if cfg.Health.CheckIntervalSec != 15 {
		t.Errorf("expected CheckIntervalSec=15, got %d", cfg.Health.CheckIntervalSec)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("RAG_TEST_ADDR", "redis:6379")
	defer os.Unsetenv("RAG_TEST_ADDR")

	in := []byte("addr: ${RAG_TEST_ADDR}\nkey: ${RAG_TEST_MISSING:-fallback}")
	out := string(expandEnvVars(in))

	want := "addr: redis:6379\nkey: fallback"
	if out != want {
		t.Errorf("expandEnvVars = %q, want %q", out, want)
	}
}
