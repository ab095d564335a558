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

// Config holds the RAG engine configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Models    ModelsConfig    `yaml:"models"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Health    HealthConfig    `yaml:"health"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AuthConfig holds API authentication settings. Empty keys disable auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	RetryBackoffMS   int      `yaml:"retry_backoff_ms"` // single retry before StoreUnavailable
}

// ModelsConfig holds the local model runtime settings. The runtime speaks
// the OpenAI-compatible API (Ollama, llama.cpp, vLLM).
type ModelsConfig struct {
	BaseURL    string           `yaml:"base_url"`
	APIKey     string           `yaml:"api_key"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxConcurrent int    `yaml:"max_concurrent"` // callers sharing the runtime
	MaxBatchSize  int    `yaml:"max_batch_size"`
}

// GenerationConfig holds generation model settings.
type GenerationConfig struct {
	Model       string  `yaml:"model"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	TargetChars    int `yaml:"target_chars"`
	OverlapPercent int `yaml:"overlap_percent"`
	ToleranceChars int `yaml:"tolerance_chars"` // boundary search window around the target
}

// RetrievalConfig holds semantic retrieval parameters.
type RetrievalConfig struct {
	DefaultTopK   int     `yaml:"default_top_k"`
	MaxTopK       int     `yaml:"max_top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// HealthConfig holds dependency probe settings.
type HealthConfig struct {
	CheckIntervalSec int `yaml:"check_interval_sec"`
	ProbeTimeoutSec  int `yaml:"probe_timeout_sec"`
}

// AnalyticsConfig holds usage reporting settings.
type AnalyticsConfig struct {
	RecentLimit    int `yaml:"recent_limit"`
	MostCitedLimit int `yaml:"most_cited_limit"`
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
		c.HTTP.WriteTimeoutSec = 120 // generation can take a while
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.RetryBackoffMS <= 0 {
		c.Database.RetryBackoffMS = 200
	}
	if c.Models.Embedding.TimeoutSec <= 0 {
		c.Models.Embedding.TimeoutSec = 30
	}
	if c.Models.Embedding.MaxConcurrent <= 0 {
		c.Models.Embedding.MaxConcurrent = 1
	}
	if c.Models.Embedding.MaxBatchSize <= 0 {
		c.Models.Embedding.MaxBatchSize = 64
	}
	if c.Models.Generation.TimeoutSec <= 0 {
		c.Models.Generation.TimeoutSec = 60
	}
	if c.Models.Generation.MaxTokens <= 0 {
		c.Models.Generation.MaxTokens = 1024
	}
	if c.Chunking.TargetChars <= 0 {
		c.Chunking.TargetChars = 800
	}
	if c.Chunking.OverlapPercent <= 0 {
		c.Chunking.OverlapPercent = 15
	}
	if c.Chunking.ToleranceChars <= 0 {
		c.Chunking.ToleranceChars = 200
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.MaxTopK <= 0 {
		c.Retrieval.MaxTopK = 20
	}
	if c.Retrieval.MinSimilarity <= 0 {
		c.Retrieval.MinSimilarity = 0.35
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Health.CheckIntervalSec <= 0 {
		c.Health.CheckIntervalSec = 15
	}
	if c.Health.ProbeTimeoutSec <= 0 {
		c.Health.ProbeTimeoutSec = 5
	}
	if c.Analytics.RecentLimit <= 0 {
		c.Analytics.RecentLimit = 20
	}
	if c.Analytics.MostCitedLimit <= 0 {
		c.Analytics.MostCitedLimit = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Models.BaseURL == "" {
		return fmt.Errorf("models.base_url is required")
	}
	if c.Models.Embedding.Model == "" {
		return fmt.Errorf("models.embedding.model is required")
	}
	if c.Models.Embedding.Dimensions <= 0 {
		return fmt.Errorf("models.embedding.dimensions must be positive, got %d", c.Models.Embedding.Dimensions)
	}
	if c.Models.Generation.Model == "" {
		return fmt.Errorf("models.generation.model is required")
	}
	if c.Chunking.OverlapPercent >= 50 {
		return fmt.Errorf("chunking.overlap_percent must be below 50, got %d", c.Chunking.OverlapPercent)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in [0,1], got %f", c.Retrieval.MinSimilarity)
	}
	if c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("retrieval.default_top_k %d exceeds max_top_k %d",
			c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK)
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
