// Package config defines the single Config value audiencelens constructs
// once at boot: YAML-loaded with environment-variable overrides, validated,
// then passed explicitly into every component's constructor. Nothing reads
// os.Getenv outside this package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all audiencelens configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Catalog    CatalogConfig    `yaml:"catalog"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Query      QueryConfig      `yaml:"query"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Session    SessionConfig    `yaml:"session"`
	Router     RouterConfig     `yaml:"router"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Logging    LoggingConfig    `yaml:"logging"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// CatalogConfig locates and bounds the variable catalog.
type CatalogConfig struct {
	Path           string `yaml:"path"`            // columnar binary path, preferred
	CSVFallbackPath string `yaml:"csv_fallback_path"` // delimited text fallback
	EmbeddingsPath string `yaml:"embeddings_path"` // sibling embeddings container
	WatchForChanges bool   `yaml:"watch_for_changes"`
}

// EmbeddingConfig selects and configures the semantic index's embedding
// provider.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" | "genai" | "" (disabled)
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"-"` // never serialized; env-only
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
	Dimensions     int    `yaml:"dimensions"`
	TopN           int    `yaml:"top_n"` // candidates returned by ANN/brute-force search, default 200
}

// QueryConfig gates the Query Processor's optional pipeline stages (§4.2).
type QueryConfig struct {
	DisableNLP       bool          `yaml:"disable_nlp"`
	NLPInitBudget    time.Duration `yaml:"nlp_init_budget"`
	SpellCorrectMaxEdit int        `yaml:"spell_correct_max_edit"`
	SynonymExpansionK int          `yaml:"synonym_expansion_k"`
}

// ScoringConfig carries the hybrid scorer's fusion weights (§4.5).
type ScoringConfig struct {
	WeightSemantic float64 `yaml:"weight_semantic"`
	WeightKeyword  float64 `yaml:"weight_keyword"`
	DomainBoost    float64 `yaml:"domain_boost"`
	DefaultTopK    int     `yaml:"default_top_k"`
	MaxTopK        int     `yaml:"max_top_k"`
}

// SimilarityConfig carries the similarity filter's defaults (§4.6).
type SimilarityConfig struct {
	Threshold     float64 `yaml:"threshold"`
	MaxPerCluster int     `yaml:"max_per_cluster"`
	Enabled       bool    `yaml:"enabled"`
}

// SessionConfig carries the session manager's eviction policy.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// RouterConfig carries the search router's A/B rollout gate (§4.8).
type RouterConfig struct {
	UseUnified         bool `yaml:"use_unified"`
	RolloutPercentage  int  `yaml:"rollout_percentage"`
}

// ResilienceConfig carries C9's per-resource timeout/retry/circuit-breaker
// budgets (§4.9).
type ResilienceConfig struct {
	EmbeddingTimeout time.Duration `yaml:"embedding_timeout"`
	NLPInitTimeout   time.Duration `yaml:"nlp_init_timeout"`
	FileReadTimeout  time.Duration `yaml:"file_read_timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"` // F in F failures / W seconds
	FailureWindow    time.Duration `yaml:"failure_window"`    // W
}

// LoggingConfig mirrors logging.Config; kept separate to avoid an import
// cycle (logging must not depend on config).
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Workspace  string          `yaml:"workspace"`
}

// HTTPConfig carries the HTTP surface's bind address and CORS policy.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the default configuration, matching the values §6
// documents as recognized environment-variable defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "audiencelens",
		Version: "0.1.0",

		Catalog: CatalogConfig{
			Path:            "data/catalog.bin",
			CSVFallbackPath: "data/catalog.csv",
			EmbeddingsPath:  "data/embeddings.bin",
		},

		Embedding: EmbeddingConfig{
			Provider:       "",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
			Dimensions:     1536,
			TopN:           200,
		},

		Query: QueryConfig{
			DisableNLP:          false,
			NLPInitBudget:       5 * time.Second,
			SpellCorrectMaxEdit: 2,
			SynonymExpansionK:   5,
		},

		Scoring: ScoringConfig{
			WeightSemantic: 0.7,
			WeightKeyword:  0.3,
			DomainBoost:    1.1,
			DefaultTopK:    50,
			MaxTopK:        200,
		},

		Similarity: SimilarityConfig{
			Threshold:     0.85,
			MaxPerCluster: 2,
			Enabled:       true,
		},

		Session: SessionConfig{
			TTL: 30 * time.Minute,
		},

		Router: RouterConfig{
			UseUnified:        false,
			RolloutPercentage: 0,
		},

		Resilience: ResilienceConfig{
			EmbeddingTimeout: 3 * time.Second,
			NLPInitTimeout:   5 * time.Second,
			FileReadTimeout:  30 * time.Second,
			FailureThreshold: 5,
			FailureWindow:    60 * time.Second,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		HTTP: HTTPConfig{
			Addr:           ":8085",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies the environment variables named in §6.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("EMBEDDING_PROVIDER_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if v := os.Getenv("DISABLE_NLP"); v != "" {
		c.Query.DisableNLP = parseBool(v, c.Query.DisableNLP)
	}
	if v := os.Getenv("USE_UNIFIED_SEARCH"); v != "" {
		c.Router.UseUnified = parseBool(v, c.Router.UseUnified)
	}
	if v := os.Getenv("UNIFIED_ROLLOUT_PERCENTAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Router.RolloutPercentage = clampInt(n, 0, 100)
		}
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv("EMBEDDINGS_PATH"); v != "" {
		c.Catalog.EmbeddingsPath = v
	}
	if v := os.Getenv("SESSION_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.TTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Similarity.Threshold = f
		}
	}
	if v := os.Getenv("SIMILARITY_MAX_PER_CLUSTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Similarity.MaxPerCluster = n
		}
	}
	if v := os.Getenv("AUDIENCELENS_DEBUG"); v != "" {
		c.Logging.DebugMode = parseBool(v, c.Logging.DebugMode)
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Validate checks the configuration is internally consistent. A missing
// embedding provider is valid: it just means the semantic path starts
// disabled rather than failing boot.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" && c.Catalog.CSVFallbackPath == "" {
		return fmt.Errorf("catalog: at least one of path or csv_fallback_path must be set")
	}
	if c.Scoring.WeightSemantic < 0 || c.Scoring.WeightKeyword < 0 {
		return fmt.Errorf("scoring: fusion weights must be non-negative")
	}
	if c.Scoring.MaxTopK <= 0 {
		return fmt.Errorf("scoring: max_top_k must be positive")
	}
	if c.Router.RolloutPercentage < 0 || c.Router.RolloutPercentage > 100 {
		return fmt.Errorf("router: rollout_percentage must be in [0,100]")
	}
	if c.Embedding.Provider != "" && c.Embedding.Provider != "ollama" && c.Embedding.Provider != "genai" {
		return fmt.Errorf("embedding: unsupported provider %q", c.Embedding.Provider)
	}
	return nil
}

// SemanticEnabled reports whether enough configuration is present to stand
// up the semantic index at all.
func (c *Config) SemanticEnabled() bool {
	if c.Embedding.Provider == "" {
		return false
	}
	if c.Embedding.Provider == "genai" && c.Embedding.GenAIAPIKey == "" {
		return false
	}
	return true
}
