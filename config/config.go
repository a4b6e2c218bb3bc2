package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "contractrag.yaml"
	DataDir  = ".contractrag"
)

// Config holds all configuration for contractrag.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects the chunk store backend.
type StoreConfig struct {
	Backend              string `yaml:"backend"`                // "bolt", "sqlite", "memory"
	Dimension            int    `yaml:"dimension"`              // fixed for the lifetime of a store
	OwnerLockGranularity string `yaml:"owner_lock_granularity"` // "owner", "global" (memory backend only)
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "hash", "openai", "ollama"
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	FoldPlurals bool   `yaml:"fold_plurals"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	DefaultTopK   int           `yaml:"default_top_k"`
	MaxTopK       int           `yaml:"max_top_k"`
	SearchTimeout time.Duration `yaml:"search_timeout"`
	CacheSize     int           `yaml:"cache_size"` // 0 disables the query cache
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// IngestConfig holds file selection and chunking configuration.
type IngestConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	ChunkTokens   int      `yaml:"chunk_tokens"` // 0 keeps one clause line per chunk
	MinChunkChars int      `yaml:"min_chunk_chars"`
	LinesPerPage  int      `yaml:"lines_per_page"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:              "bolt",
			Dimension:            256,
			OwnerLockGranularity: "owner",
		},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			BatchSize:   64,
			Concurrency: 4,
			FoldPlurals: true,
		},
		Retrieve: RetrieveConfig{
			DefaultTopK:   5,
			MaxTopK:       100,
			SearchTimeout: 5 * time.Second,
			CacheSize:     128,
			CacheTTL:      5 * time.Minute,
		},
		Ingest: IngestConfig{
			Includes:      []string{"**/*.txt", "**/*.md"},
			Excludes:      []string{"**/.git/**", "**/" + DataDir + "/**"},
			ChunkTokens:   0,
			MinChunkChars: 20,
			LinesPerPage:  3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "bolt", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("store.dimension: must be positive, got %d", c.Store.Dimension))
	}
	switch c.Store.OwnerLockGranularity {
	case "", "owner":
	case "global":
		// bolt and sqlite lock inside the engine; only the memory store
		// takes its locks from this setting.
		if c.Store.Backend != "memory" {
			errs = append(errs, fmt.Errorf("store.owner_lock_granularity: %q requires the memory backend, got %q", c.Store.OwnerLockGranularity, c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store.owner_lock_granularity: unknown value %q", c.Store.OwnerLockGranularity))
	}
	switch c.Embedding.Provider {
	case "hash", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size: must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("embedding.concurrency: must be positive, got %d", c.Embedding.Concurrency))
	}
	if c.Retrieve.MaxTopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.max_top_k: must be positive, got %d", c.Retrieve.MaxTopK))
	}
	if c.Retrieve.DefaultTopK <= 0 || c.Retrieve.DefaultTopK > c.Retrieve.MaxTopK {
		errs = append(errs, fmt.Errorf("retrieve.default_top_k: must be in 1..%d, got %d", c.Retrieve.MaxTopK, c.Retrieve.DefaultTopK))
	}
	if c.Retrieve.SearchTimeout < 0 {
		errs = append(errs, fmt.Errorf("retrieve.search_timeout: must not be negative"))
	}
	if c.Ingest.ChunkTokens < 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_tokens: must not be negative"))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads contractrag.yaml or .contractrag/config.yaml from dir.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the store file for backend. The memory backend has
// no file and yields "".
func IndexDBPath(dir, backend string) string {
	switch backend {
	case "bolt":
		return filepath.Join(dir, DataDir, "chunks.bolt")
	case "sqlite":
		return filepath.Join(dir, DataDir, "chunks.sqlite")
	}
	return ""
}

// EnsureDataDir ensures the .contractrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDir), 0755)
}
