// Package config loads and validates the forkfolio service configuration
// from YAML or JSON files with FORKFOLIO_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/virajxp1/forkfolio/dedupe"
	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/pkg/cache"
	"github.com/virajxp1/forkfolio/rerank"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	NATS      NATSConfig      `json:"nats" yaml:"nats"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Dedupe    dedupe.Config   `json:"dedupe" yaml:"dedupe"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Caches    CachesConfig    `json:"caches" yaml:"caches"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string   `json:"addr" yaml:"addr"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL string `json:"url" yaml:"url"`
}

// EmbeddingConfig selects and configures the embedding provider.
// Provider is "openai" (any OpenAI-compatible endpoint) or "bm25"
// (local lexical fallback, no network).
type EmbeddingConfig struct {
	Provider   string   `json:"provider" yaml:"provider"`
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	Model      string   `json:"model" yaml:"model"`
	APIKey     string   `json:"api_key" yaml:"api_key"`
	Dimensions int      `json:"dimensions" yaml:"dimensions"`
	Timeout    Duration `json:"timeout" yaml:"timeout"`
}

// LLMConfig configures the structured-output chat provider.
type LLMConfig struct {
	BaseURL     string   `json:"base_url" yaml:"base_url"`
	Model       string   `json:"model" yaml:"model"`
	APIKey      string   `json:"api_key" yaml:"api_key"`
	Temperature float32  `json:"temperature" yaml:"temperature"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// SearchConfig configures semantic search and reranking.
type SearchConfig struct {
	// MaxDistance bounds the nearest-neighbor scan for search candidates.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance"`

	// DefaultLimit and MaxLimit bound the per-request result count.
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
	MaxLimit     int `json:"max_limit" yaml:"max_limit"`

	// CandidateFactor multiplies the limit to size the candidate pool
	// handed to the reranker.
	CandidateFactor int `json:"candidate_factor" yaml:"candidate_factor"`

	Rerank rerank.Config `json:"rerank" yaml:"rerank"`
}

// CacheConfig sizes one bounded expiring cache. Disabled, or a
// non-positive TTL or size, means every lookup misses.
type CacheConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	MaxEntries int      `json:"max_entries" yaml:"max_entries"`
	TTL        Duration `json:"ttl" yaml:"ttl"`
}

// Cache converts to the cache package's config type.
func (c CacheConfig) Cache() cache.Config {
	return cache.Config{
		Enabled:    c.Enabled,
		MaxEntries: c.MaxEntries,
		TTL:        c.TTL.Std(),
	}
}

// CachesConfig holds the provider-call caches.
type CachesConfig struct {
	Embedding CacheConfig `json:"embedding" yaml:"embedding"`
	Judgment  CacheConfig `json:"judgment" yaml:"judgment"`
}

// IngestConfig configures bulk ingestion.
type IngestConfig struct {
	Workers   int `json:"workers" yaml:"workers"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Embedding: EmbeddingConfig{
			Provider: "bm25",
			Timeout:  Duration(30 * time.Second),
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(60 * time.Second),
		},
		Dedupe: dedupe.DefaultConfig(),
		Search: SearchConfig{
			MaxDistance:     0.35,
			DefaultLimit:    10,
			MaxLimit:        50,
			CandidateFactor: 3,
			Rerank:          rerank.DefaultConfig(),
		},
		Caches: CachesConfig{
			Embedding: CacheConfig{Enabled: true, MaxEntries: 2000, TTL: Duration(24 * time.Hour)},
			Judgment:  CacheConfig{Enabled: true, MaxEntries: 1000, TTL: Duration(time.Hour)},
		},
		Ingest: IngestConfig{
			Workers:   4,
			QueueSize: 256,
		},
	}
}

// LoadFile reads a config file, chooses the decoder by extension
// (.yaml/.yml or .json), applies it over the defaults, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "LoadFile", "read config file")
		}

		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "config", "LoadFile", "parse YAML config")
			}
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "config", "LoadFile", "parse JSON config")
			}
		default:
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "LoadFile",
				fmt.Sprintf("unsupported config extension %q", filepath.Ext(path)))
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FORKFOLIO_* environment variables over the
// loaded config. Secrets (API keys) are the main use; endpoints are
// covered for container deployments.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	setString("FORKFOLIO_HTTP_ADDR", &cfg.HTTP.Addr)
	setString("FORKFOLIO_NATS_URL", &cfg.NATS.URL)
	setString("FORKFOLIO_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	setString("FORKFOLIO_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("FORKFOLIO_EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("FORKFOLIO_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	setString("FORKFOLIO_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("FORKFOLIO_LLM_MODEL", &cfg.LLM.Model)
	setString("FORKFOLIO_LLM_API_KEY", &cfg.LLM.APIKey)

	if v := os.Getenv("FORKFOLIO_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Workers = n
		}
	}
}

// Validate rejects configurations that cannot run. Threshold and
// parameter errors surface at startup, never per-request.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "http.addr is required")
	}
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "nats.url is required")
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.BaseURL == "" || c.Embedding.Model == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				"embedding.base_url and embedding.model are required for the openai provider")
		}
	case "bm25":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}

	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"llm.base_url and llm.model are required")
	}

	if err := c.Dedupe.Validate(); err != nil {
		return err
	}
	if err := c.Search.Rerank.Validate(); err != nil {
		return err
	}

	if c.Search.MaxDistance <= 0 || c.Search.MaxDistance > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("search.max_distance %.3f outside (0,1]", c.Search.MaxDistance))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"search limits must satisfy 0 < default_limit <= max_limit")
	}
	if c.Search.CandidateFactor <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"search.candidate_factor must be positive")
	}

	return nil
}
