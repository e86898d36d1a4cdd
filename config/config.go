// Package config provides a flexible configuration management system for the
// retrieval core. It handles configuration loading, validation, and
// persistence with support for multiple sources:
//   - Configuration files (JSON)
//   - Environment variables (RAGCORE_ prefix)
//   - Programmatic defaults
//
// The package implements a hierarchical configuration system where settings
// can be overridden in the following order (highest to lowest precedence):
//  1. Environment variables
//  2. Configuration file
//  3. Default values
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the retrieval core. It provides a
// centralized way to manage settings across every component (C1-C10).
type Config struct {
	// Provider settings configure the embedding provider.
	Provider string            `json:"provider" env:"RAGCORE_PROVIDER"`
	Model    string            `json:"model" env:"RAGCORE_MODEL"`
	APIKey   string            `json:"api_key" env:"RAGCORE_API_KEY"`
	APIKeys  map[string]string `json:"api_keys"`

	// FallbackProvider/FallbackModel configure C1's secondary embedder.
	FallbackProvider string `json:"fallback_provider" env:"RAGCORE_FALLBACK_PROVIDER"`
	FallbackModel    string `json:"fallback_model" env:"RAGCORE_FALLBACK_MODEL"`

	// Vector store settings (C2).
	VectorStoreType string `json:"vector_store_type" env:"RAGCORE_VECTOR_STORE_TYPE"`
	VectorStoreDSN  string `json:"vector_store_dsn" env:"RAGCORE_VECTOR_STORE_DSN"`
	VectorDimension int    `json:"vector_dimension" env:"RAGCORE_VECTOR_DIMENSION"`

	// Extractor settings (C3).
	MaxFileSize  int64 `json:"max_file_size" env:"RAGCORE_MAX_FILE_SIZE"`
	MaxSheetRows int   `json:"max_sheet_rows" env:"RAGCORE_MAX_SHEET_ROWS"`
	MaxSheetCols int   `json:"max_sheet_cols" env:"RAGCORE_MAX_SHEET_COLS"`

	// Chunker settings (C4).
	MaxChunkSize int `json:"max_chunk_size" env:"RAGCORE_MAX_CHUNK_SIZE"`
	MinChunkSize int `json:"min_chunk_size" env:"RAGCORE_MIN_CHUNK_SIZE"`
	OverlapSize  int `json:"overlap_size" env:"RAGCORE_OVERLAP_SIZE"`

	// Ingestor settings (C5).
	EmbedBatchSize int           `json:"embed_batch_size" env:"RAGCORE_EMBED_BATCH_SIZE"`
	RecordStoreDir string        `json:"record_store_dir" env:"RAGCORE_RECORD_STORE_DIR"`
	Timeout        time.Duration `json:"timeout" env:"RAGCORE_TIMEOUT"`

	// Conversation memory settings (C6).
	WindowSize     int `json:"window_size" env:"RAGCORE_WINDOW_SIZE"`
	BatchThreshold int `json:"batch_threshold" env:"RAGCORE_BATCH_THRESHOLD"`

	// Hybrid retriever settings (C8).
	DiscoveryThreshold   float64 `json:"discovery_threshold" env:"RAGCORE_DISCOVERY_THRESHOLD"`
	FallbackThreshold    float64 `json:"fallback_threshold" env:"RAGCORE_FALLBACK_THRESHOLD"`
	MinResultsForContext int     `json:"min_results_for_context" env:"RAGCORE_MIN_RESULTS_FOR_CONTEXT"`
	CacheCapacity        int     `json:"cache_capacity" env:"RAGCORE_CACHE_CAPACITY"`
	CacheTTLSeconds      int     `json:"cache_ttl_seconds" env:"RAGCORE_CACHE_TTL_SECONDS"`

	// Search settings (Search-documents external interface).
	DefaultSearchLimit int `json:"default_search_limit" env:"RAGCORE_DEFAULT_SEARCH_LIMIT"`

	MaxRetries int `json:"max_retries" env:"RAGCORE_MAX_RETRIES"`
}

// defaultConfig returns the programmatic defaults, applied before any file
// or environment override.
func defaultConfig() *Config {
	return &Config{
		Provider:             "openai",
		Model:                "text-embedding-3-small",
		APIKeys:              make(map[string]string),
		VectorStoreType:      "memory",
		VectorDimension:      1536,
		MaxFileSize:          50 * 1024 * 1024,
		MaxSheetRows:         10000,
		MaxSheetCols:         50,
		MaxChunkSize:         1000,
		MinChunkSize:         100,
		OverlapSize:          100,
		EmbedBatchSize:       5,
		RecordStoreDir:       "./.ragcore/records",
		Timeout:              30 * time.Second,
		WindowSize:           10,
		BatchThreshold:       10,
		DiscoveryThreshold:   0.08,
		FallbackThreshold:    0.04,
		MinResultsForContext: 1,
		CacheCapacity:        256,
		CacheTTLSeconds:      300,
		DefaultSearchLimit:   5,
		MaxRetries:           3,
	}
}

// LoadConfig loads configuration from multiple sources, combining them
// according to the precedence rules. It starts from programmatic defaults,
// applies a JSON config file if found, then overrides with environment
// variables via caarlos0/env's struct-tag binding.
//
// Configuration file search paths:
//  1. $RAGCORE_CONFIG environment variable
//  2. ~/.ragcore/config.json
//  3. ~/.config/ragcore/config.json
//  4. ./ragcore.json
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	configFile := os.Getenv("RAGCORE_CONFIG")
	if configFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			for _, candidate := range []string{
				filepath.Join(home, ".ragcore", "config.json"),
				filepath.Join(home, ".config", "ragcore", "config.json"),
				"ragcore.json",
			} {
				if _, err := os.Stat(candidate); err == nil {
					configFile = candidate
					break
				}
			}
		}
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Environment variables take precedence over the file, so re-apply.
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		if cfg.APIKeys == nil {
			cfg.APIKeys = make(map[string]string)
		}
		cfg.APIKeys[cfg.Provider] = cfg.APIKey
	}
	return cfg, nil
}

// Save persists the configuration to a JSON file at the specified path,
// creating any necessary parent directories.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
