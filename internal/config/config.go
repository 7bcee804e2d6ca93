// Package config loads and validates the gateway configuration from a
// JSON file. String values may reference environment variables with
// ${VAR} placeholders, which are expanded at load time.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level gateway configuration.
type Config struct {
	Port      int             `json:"port"`
	DataDir   string          `json:"data_dir,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Ingest    IngestConfig    `json:"ingest"`
	AI        AIConfig        `json:"ai"`
	Embedding EmbeddingConfig `json:"embedding"`
	Memory    MemoryConfig    `json:"memory,omitempty"`
	Tenants   []TenantConfig  `json:"tenants"`
	Channels  []ChannelConfig `json:"channels,omitempty"`
	Schedule  ScheduleConfig  `json:"schedule,omitempty"`
}

// StorageConfig names the SQLite database files.
type StorageConfig struct {
	VectorPath string `json:"vector_path,omitempty"`
	MemoryPath string `json:"memory_path,omitempty"`
}

// IngestConfig tunes the document and web ingestion pipeline.
type IngestConfig struct {
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
	CrawlDepth   int    `json:"crawl_depth,omitempty"`
	CrawlPages   int    `json:"crawl_pages,omitempty"`
	CrawlDelayMS int    `json:"crawl_delay_ms,omitempty"`
	Fetcher      string `json:"fetcher,omitempty"` // "http" (default) or "chrome"
}

// CrawlDelay returns the configured politeness delay.
func (c IngestConfig) CrawlDelay() time.Duration {
	return time.Duration(c.CrawlDelayMS) * time.Millisecond
}

// AIConfig selects and configures the generation provider.
type AIConfig struct {
	Provider  string `json:"provider"` // "anthropic", "openai", or "mock"
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `json:"provider,omitempty"` // "hash" (default) or "openai"
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Dims     int    `json:"dims,omitempty"`
}

// MemoryConfig tunes conversation retention.
type MemoryConfig struct {
	MaxTurns     int `json:"max_turns,omitempty"`
	HistoryTurns int `json:"history_turns,omitempty"`
}

// TenantConfig describes one tenant's knowledge sources.
type TenantConfig struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name,omitempty"`
	UploadDir string   `json:"upload_dir,omitempty"`
	URLs      []string `json:"urls,omitempty"`
}

// ChannelConfig configures one message channel.
type ChannelConfig struct {
	Type     string `json:"type"` // "telegram"
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	TenantID int64  `json:"tenant_id,omitempty"`
}

// ScheduleConfig enables periodic re-indexing of all tenants.
type ScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron,omitempty"` // cron expression, default daily at 03:00
}

// Load reads, expands, defaults, and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnvVars()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a runnable configuration with a mock provider.
func Default() *Config {
	cfg := &Config{
		Port: 8080,
		AI:   AIConfig{Provider: "mock"},
	}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars expands ${VAR} placeholders in credential and path fields.
func (c *Config) expandEnvVars() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.Storage.VectorPath = os.ExpandEnv(c.Storage.VectorPath)
	c.Storage.MemoryPath = os.ExpandEnv(c.Storage.MemoryPath)
	c.AI.APIKey = os.ExpandEnv(c.AI.APIKey)
	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	for i := range c.Channels {
		c.Channels[i].Token = os.ExpandEnv(c.Channels[i].Token)
	}
	for i := range c.Tenants {
		c.Tenants[i].UploadDir = os.ExpandEnv(c.Tenants[i].UploadDir)
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Storage.VectorPath == "" {
		c.Storage.VectorPath = c.DataDir + "/vectors.db"
	}
	if c.Storage.MemoryPath == "" {
		c.Storage.MemoryPath = c.DataDir + "/memory.db"
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 1000
	}
	if c.Ingest.ChunkOverlap == 0 {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Ingest.CrawlDepth == 0 {
		c.Ingest.CrawlDepth = 3
	}
	if c.Ingest.CrawlPages == 0 {
		c.Ingest.CrawlPages = 200
	}
	if c.Ingest.CrawlDelayMS == 0 {
		c.Ingest.CrawlDelayMS = 500
	}
	if c.Ingest.Fetcher == "" {
		c.Ingest.Fetcher = "http"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Memory.MaxTurns == 0 {
		c.Memory.MaxTurns = 200
	}
	if c.Memory.HistoryTurns == 0 {
		c.Memory.HistoryTurns = 20
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 3 * * *"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AI.Provider {
	case "anthropic", "openai":
		if c.AI.APIKey == "" {
			return fmt.Errorf("ai provider %q requires an api_key", c.AI.Provider)
		}
	case "mock":
	default:
		return fmt.Errorf("unknown ai provider: %q", c.AI.Provider)
	}

	switch c.Embedding.Provider {
	case "hash":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding provider %q requires an api_key", c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}

	switch c.Ingest.Fetcher {
	case "http", "chrome":
	default:
		return fmt.Errorf("unknown fetcher: %q", c.Ingest.Fetcher)
	}

	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}

	seen := make(map[int64]bool)
	for _, t := range c.Tenants {
		if t.ID <= 0 {
			return fmt.Errorf("tenant %q has invalid id %d", t.Name, t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tenant id: %d", t.ID)
		}
		seen[t.ID] = true
	}

	for _, ch := range c.Channels {
		if !ch.Enabled {
			continue
		}
		switch ch.Type {
		case "telegram":
			if ch.Token == "" {
				return fmt.Errorf("telegram channel requires a token")
			}
			if ch.TenantID <= 0 {
				return fmt.Errorf("telegram channel requires a tenant_id")
			}
		default:
			return fmt.Errorf("unknown channel type: %q", ch.Type)
		}
	}

	return nil
}

// Tenant returns the tenant with the given ID, if configured.
func (c *Config) Tenant(id int64) (TenantConfig, bool) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return TenantConfig{}, false
}
