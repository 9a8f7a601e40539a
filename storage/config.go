package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds buffer configuration
type Config struct {
	// Buffer Pool Configuration
	PoolSize      uint32 `json:"pool_size" yaml:"pool_size"`           // Number of frames
	CacheReplacer string `json:"cache_replacer" yaml:"cache_replacer"` // Replacement policy (lru-k, lru)
	ReplacerK     int    `json:"replacer_k" yaml:"replacer_k"`         // History depth for LRU-K

	// Page Table Configuration
	BucketSize      int    `json:"bucket_size" yaml:"bucket_size"`             // Entries per extendible hash bucket
	PageTableShards uint32 `json:"page_table_shards" yaml:"page_table_shards"` // Independent page table shards
	MaxGlobalDepth  int    `json:"max_global_depth" yaml:"max_global_depth"`   // Directory depth limit per hash table

	// Observability Configuration
	EnableMetrics bool   `json:"enable_metrics" yaml:"enable_metrics"` // Whether to expose metrics
	LogLevel      string `json:"log_level" yaml:"log_level"`           // Log level (debug, info, warn, error)
	LogFormat     string `json:"log_format" yaml:"log_format"`         // Log encoding (json, console)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:        100,
		CacheReplacer:   ReplacerLRUK,
		ReplacerK:       2,
		BucketSize:      8,
		PageTableShards: 16,
		MaxGlobalDepth:  DefaultMaxGlobalDepth,
		EnableMetrics:   true,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// LoadConfigFromFile loads configuration from a JSON or YAML file.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, ErrInvalidConfig("LoadConfigFromFile", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables
// Falls back to default values if environment variables are not set
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	// Buffer Pool
	if val := os.Getenv("HEXBUFFER_POOL_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PoolSize = uint32(size)
		}
	}

	if val := os.Getenv("HEXBUFFER_CACHE_REPLACER"); val != "" {
		config.CacheReplacer = val
	}

	if val := os.Getenv("HEXBUFFER_REPLACER_K"); val != "" {
		if k, err := strconv.Atoi(val); err == nil {
			config.ReplacerK = k
		}
	}

	// Page Table
	if val := os.Getenv("HEXBUFFER_BUCKET_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.BucketSize = size
		}
	}

	if val := os.Getenv("HEXBUFFER_PAGE_TABLE_SHARDS"); val != "" {
		if shards, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PageTableShards = uint32(shards)
		}
	}

	if val := os.Getenv("HEXBUFFER_MAX_GLOBAL_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxGlobalDepth = depth
		}
	}

	// Observability
	if val := os.Getenv("HEXBUFFER_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("HEXBUFFER_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("HEXBUFFER_LOG_FORMAT"); val != "" {
		config.LogFormat = val
	}

	return config
}

// SaveToFile saves the configuration to a JSON or YAML file, chosen by extension
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PoolSize == 0 {
		return fmt.Errorf("pool size must be greater than 0")
	}

	switch c.CacheReplacer {
	case ReplacerLRUK, ReplacerLRU:
	default:
		return fmt.Errorf("invalid cache replacer: %s (must be %s or %s)", c.CacheReplacer, ReplacerLRUK, ReplacerLRU)
	}

	if c.ReplacerK < 1 {
		return fmt.Errorf("replacer k must be at least 1")
	}

	if c.BucketSize < 1 {
		return fmt.Errorf("bucket size must be at least 1")
	}

	if c.PageTableShards == 0 {
		return fmt.Errorf("page table shards must be greater than 0")
	}

	if c.MaxGlobalDepth < 1 || c.MaxGlobalDepth > MaxHashBits {
		return fmt.Errorf("max global depth must be in [1, %d]", MaxHashBits)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
