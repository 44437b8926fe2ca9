// Package config loads and validates docsift configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/docsift/config.yaml)
//  3. Project config (.docsift.yaml in the working directory)
//  4. Environment variables (DOCSIFT_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docsift configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures where index artifacts live.
type PathsConfig struct {
	// DataDir is the directory holding passages.db and the vector index.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures hybrid retrieval parameters.
type SearchConfig struct {
	// FusionWeight is the dense-signal weight in score fusion (0.0-1.0).
	// The lexical signal gets 1.0 - FusionWeight.
	FusionWeight float64 `yaml:"fusion_weight" json:"fusion_weight"`

	// RecallK is how many candidates dense recall requests.
	RecallK int `yaml:"recall_k" json:"recall_k"`

	// LexicalK is how many candidates lexical recall requests.
	LexicalK int `yaml:"lexical_k" json:"lexical_k"`

	// MaxResults is the final top-k returned after reranking.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// RelevanceFloor drops reranked candidates scoring below it.
	// Nil disables thresholding.
	RelevanceFloor *float64 `yaml:"relevance_floor" json:"relevance_floor"`

	// Hybrid enables lexical recall alongside dense recall.
	// Nil means enabled.
	Hybrid *bool `yaml:"hybrid" json:"hybrid"`

	// QueryExpansion enables corpus-driven query expansion before recall.
	QueryExpansion bool `yaml:"query_expansion" json:"query_expansion"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "static", "ollama", "openai".
	// Empty triggers auto-detection: Ollama if reachable, else static.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the LRU embedding cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// OpenAIBaseURL overrides the OpenAI-compatible API endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`

	// OpenAIAPIKey is read from DOCSIFT_OPENAI_API_KEY or OPENAI_API_KEY,
	// never from config files.
	OpenAIAPIKey string `yaml:"-" json:"-"`
}

// RerankerConfig configures the pairwise relevance scorer.
type RerankerConfig struct {
	// Provider selects the scorer: "overlap" (local, deterministic) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".docsift",
		},
		Search: SearchConfig{
			FusionWeight:   0.6,
			RecallK:        50,
			LexicalK:       50,
			MaxResults:     5,
			RelevanceFloor: nil,
			Hybrid:         nil,
			QueryExpansion: false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama -> static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			CacheSize:  1000,
			OllamaHost: "",
		},
		Reranker: RerankerConfig{
			Provider:   "overlap",
			Model:      "qwen3:0.6b",
			OllamaHost: "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// UseHybrid reports whether lexical recall is enabled.
func (c *Config) UseHybrid() bool {
	if c.Search.Hybrid == nil {
		return true
	}
	return *c.Search.Hybrid
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docsift/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docsift/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsift", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docsift", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsift", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .docsift.yaml or .docsift.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".docsift.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".docsift.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}

	// Search
	// Note: 0 is not a practical fusion weight, so we only merge non-zero values
	if other.Search.FusionWeight != 0 {
		c.Search.FusionWeight = other.Search.FusionWeight
	}
	if other.Search.RecallK != 0 {
		c.Search.RecallK = other.Search.RecallK
	}
	if other.Search.LexicalK != 0 {
		c.Search.LexicalK = other.Search.LexicalK
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.RelevanceFloor != nil {
		c.Search.RelevanceFloor = other.Search.RelevanceFloor
	}
	if other.Search.Hybrid != nil {
		c.Search.Hybrid = other.Search.Hybrid
	}
	if other.Search.QueryExpansion {
		c.Search.QueryExpansion = true
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = other.Embeddings.OpenAIBaseURL
	}

	// Reranker
	if other.Reranker.Provider != "" {
		c.Reranker.Provider = other.Reranker.Provider
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.OllamaHost != "" {
		c.Reranker.OllamaHost = other.Reranker.OllamaHost
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies DOCSIFT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSIFT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}

	if v := os.Getenv("DOCSIFT_FUSION_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.FusionWeight = w
		}
	}
	if v := os.Getenv("DOCSIFT_RECALL_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RecallK = k
		}
	}
	if v := os.Getenv("DOCSIFT_MAX_RESULTS"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.MaxResults = k
		}
	}
	if v := os.Getenv("DOCSIFT_RELEVANCE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.RelevanceFloor = &f
		}
	}

	if v := os.Getenv("DOCSIFT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCSIFT_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		if c.Reranker.OllamaHost == "" {
			c.Reranker.OllamaHost = v
		}
	}
	if v := os.Getenv("DOCSIFT_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}
	if v := os.Getenv("DOCSIFT_OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIAPIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIAPIKey = v
	}

	if v := os.Getenv("DOCSIFT_RERANKER_PROVIDER"); v != "" {
		c.Reranker.Provider = v
	}
	if v := os.Getenv("DOCSIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.FusionWeight < 0 || c.Search.FusionWeight > 1 {
		return fmt.Errorf("fusion_weight must be between 0 and 1, got %f", c.Search.FusionWeight)
	}
	if math.IsNaN(c.Search.FusionWeight) {
		return fmt.Errorf("fusion_weight must be a number")
	}

	if c.Search.RecallK <= 0 {
		return fmt.Errorf("recall_k must be positive, got %d", c.Search.RecallK)
	}
	if c.Search.LexicalK <= 0 {
		return fmt.Errorf("lexical_k must be positive, got %d", c.Search.LexicalK)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.Search.MaxResults)
	}

	// Empty string triggers auto-detection
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"static": true, "ollama": true, "openai": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'static', 'ollama', 'openai', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validScorers := map[string]bool{"overlap": true, "ollama": true}
	if !validScorers[strings.ToLower(c.Reranker.Provider)] {
		return fmt.Errorf("reranker.provider must be 'overlap' or 'ollama', got %s", c.Reranker.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
