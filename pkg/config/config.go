// Package config loads the service configuration from a YAML file with
// ${VAR} environment expansion. Nothing here is hardcoded in the pipeline
// components; both binaries read the same file so the indexing and query
// phases always talk to the same endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the pxlex configuration.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	LLM    LLMConfig    `yaml:"llm"`
	Search SearchConfig `yaml:"search"`
	Index  IndexConfig  `yaml:"index"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
	CORSOrigin      string `yaml:"cors_origin"`
}

// QdrantConfig holds vector store settings. One endpoint serves both the
// indexing and query phases; a divergence between them is a configuration
// bug, not a feature.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
}

// LLMConfig holds the model service settings.
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`
	// Temperature is a pointer so that an explicit 0 (deterministic
	// generation) is distinguishable from an absent field.
	Temperature *float32 `yaml:"temperature"`
	RatePerSec  float64  `yaml:"rate_per_sec"`
	Burst       int      `yaml:"burst"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	Limit  int    `yaml:"limit"`
	HnswEf uint64 `yaml:"hnsw_ef"`
	Exact  bool   `yaml:"exact"`
}

// IndexConfig holds batch indexing settings.
type IndexConfig struct {
	Workers int `yaml:"workers"`
	// RowLimit caps indexed rows for development runs; 0 means all rows.
	RowLimit int `yaml:"row_limit"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with the deployment defaults.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.CORSOrigin == "" {
		c.HTTP.CORSOrigin = "*"
	}
	if c.Qdrant.Addr == "" {
		c.Qdrant.Addr = "127.0.0.1:6334"
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "px_words"
	}
	if c.Qdrant.VectorSize <= 0 {
		c.Qdrant.VectorSize = 1024
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if c.LLM.EmbedModel == "" {
		c.LLM.EmbedModel = "text-embedding-v3"
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "qwen-plus"
	}
	if c.LLM.Temperature == nil {
		t := float32(0.7)
		c.LLM.Temperature = &t
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = 3
	}
	if c.Search.HnswEf == 0 {
		c.Search.HnswEf = 128
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if t := *c.LLM.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", t)
	}
	if c.Search.Limit > 10 {
		return fmt.Errorf("search.limit %d too large for a bounded prompt", c.Search.Limit)
	}
	if c.Index.RowLimit < 0 {
		return fmt.Errorf("index.row_limit must not be negative, got %d", c.Index.RowLimit)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
