package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Dimension != 256 {
		t.Errorf("expected Dimension=256, got %d", cfg.Store.Dimension)
	}
	if cfg.Retrieve.DefaultTopK != 5 {
		t.Errorf("expected DefaultTopK=5, got %d", cfg.Retrieve.DefaultTopK)
	}
	if cfg.Retrieve.MaxTopK != 100 {
		t.Errorf("expected MaxTopK=100, got %d", cfg.Retrieve.MaxTopK)
	}
	if cfg.Retrieve.SearchTimeout != 5*time.Second {
		t.Errorf("expected SearchTimeout=5s, got %v", cfg.Retrieve.SearchTimeout)
	}
	if cfg.Ingest.MinChunkChars != 20 || cfg.Ingest.LinesPerPage != 3 {
		t.Errorf("unexpected ingest defaults %+v", cfg.Ingest)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	content := `
store:
  backend: sqlite
  dimension: 64
embedding:
  fold_plurals: false
retrieve:
  default_top_k: 10
  search_timeout: 250ms
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != "sqlite" || cfg.Store.Dimension != 64 {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Embedding.FoldPlurals {
		t.Error("expected FoldPlurals=false")
	}
	if cfg.Retrieve.DefaultTopK != 10 {
		t.Errorf("expected DefaultTopK=10, got %d", cfg.Retrieve.DefaultTopK)
	}
	if cfg.Retrieve.SearchTimeout != 250*time.Millisecond {
		t.Errorf("expected SearchTimeout=250ms, got %v", cfg.Retrieve.SearchTimeout)
	}
	if cfg.Retrieve.MaxTopK != 100 {
		t.Errorf("unset fields should keep defaults, got MaxTopK=%d", cfg.Retrieve.MaxTopK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, []byte("store: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, DataDir, "config.yaml")

	content := `
retrieve:
  max_top_k: 50
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.MaxTopK != 50 {
		t.Errorf("expected MaxTopK=50, got %d", cfg.Retrieve.MaxTopK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Retrieve.SearchTimeout = 2 * time.Second
	cfg.Store.Backend = "memory"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieve.SearchTimeout != 2*time.Second || loaded.Store.Backend != "memory" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"zero dimension", func(c *Config) { c.Store.Dimension = 0 }, "store.dimension"},
		{"bad granularity", func(c *Config) { c.Store.OwnerLockGranularity = "table" }, "owner_lock_granularity"},
		{"global lock on bolt", func(c *Config) { c.Store.OwnerLockGranularity = "global" }, "requires the memory backend"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "voyage" }, "embedding.provider"},
		{"default above max", func(c *Config) { c.Retrieve.DefaultTopK = 101 }, "default_top_k"},
		{"zero concurrency", func(c *Config) { c.Embedding.Concurrency = 0 }, "embedding.concurrency"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateGlobalLockOnMemoryBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Store.OwnerLockGranularity = "global"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected memory backend to accept global locking, got %v", err)
	}
}

func TestIndexDBPath(t *testing.T) {
	dir := "/home/user/contracts"
	if got, want := IndexDBPath(dir, "bolt"), filepath.Join(dir, DataDir, "chunks.bolt"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := IndexDBPath(dir, "sqlite"), filepath.Join(dir, DataDir, "chunks.sqlite"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got := IndexDBPath(dir, "memory"); got != "" {
		t.Errorf("expected no path for memory backend, got %s", got)
	}
}
