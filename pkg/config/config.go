// Package config loads runtime configuration from YAML with environment
// variable fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ringlet-dev/ringlet/agents"
	"github.com/ringlet-dev/ringlet/pkg/embeddings"
)

// Config represents the application configuration.
type Config struct {
	// API Keys
	OpenAIKey string `yaml:"openai_key"`
	VoyageKey string `yaml:"voyage_key"`

	// Model Configuration
	CompletionModel string  `yaml:"completion_model"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`

	// Embeddings provider: voyage or openai
	EmbeddingsProvider string `yaml:"embeddings_provider"`

	// Transcript store: memory or redis
	Transcript TranscriptConfig `yaml:"transcript"`

	// Agents started at boot
	Agents []agents.Def `yaml:"agents"`

	// Runtime Configuration
	Runtime RuntimeConfig `yaml:"runtime"`

	// Observability Configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// Duration wraps time.Duration so YAML files can use values like "50ms".
type Duration struct{ time.Duration }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var err error
	d.Duration, err = time.ParseDuration(value.Value)
	return err
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// TranscriptConfig selects and configures the transcript store.
type TranscriptConfig struct {
	Backend    string   `yaml:"backend"` // memory, redis
	RedisAddr  string   `yaml:"redis_addr"`
	RedisDB    int      `yaml:"redis_db"`
	TTL        Duration `yaml:"ttl,omitempty"`
	MaxEntries int      `yaml:"max_entries,omitempty"`
}

// RuntimeConfig holds coordinator and scheduling configuration.
type RuntimeConfig struct {
	MaxAgents    int      `yaml:"max_agents"`
	MaxQueueSize int      `yaml:"max_queue_size"`
	TickInterval Duration `yaml:"tick_interval"`
}

// ObservabilityConfig holds the metrics and health endpoint configuration.
type ObservabilityConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// StatsSchedule is a cron expression for periodic stats logging
	// (empty disables the job).
	StatsSchedule string `yaml:"stats_schedule"`
}

// Default returns a configuration with all defaults applied and no file
// loaded.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CompletionModel == "" {
		c.CompletionModel = "gpt-4o-mini"
	}
	if c.EmbeddingsProvider == "" {
		c.EmbeddingsProvider = "voyage"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.Transcript.Backend == "" {
		c.Transcript.Backend = "memory"
	}
	if c.Runtime.MaxAgents == 0 {
		c.Runtime.MaxAgents = 100
	}
	if c.Runtime.MaxQueueSize == 0 {
		c.Runtime.MaxQueueSize = 10
	}
	if c.Runtime.TickInterval.Duration == 0 {
		c.Runtime.TickInterval = Duration{100 * time.Millisecond}
	}
	if c.Observability.Addr == "" {
		c.Observability.Addr = ":9090"
	}
}

func (c *Config) applyEnv() {
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.VoyageKey == "" {
		c.VoyageKey = os.Getenv("VOYAGE_API_KEY")
	}
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Runtime.MaxAgents < 0 {
		return fmt.Errorf("max_agents cannot be negative")
	}
	switch c.Transcript.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown transcript backend: %s", c.Transcript.Backend)
	}
	if c.Transcript.Backend == "redis" && c.Transcript.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis transcript backend")
	}
	switch c.EmbeddingsProvider {
	case "voyage", "openai":
	default:
		return fmt.Errorf("unknown embeddings provider: %s", c.EmbeddingsProvider)
	}
	seen := make(map[string]struct{}, len(c.Agents))
	for i := range c.Agents {
		def := &c.Agents[i]
		if def.ID == "" {
			return fmt.Errorf("agent %d: id is required", i)
		}
		if def.Role == "" {
			return fmt.Errorf("agent %s: role is required", def.ID)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("duplicate agent id: %s", def.ID)
		}
		seen[def.ID] = struct{}{}
	}
	return nil
}

// EmbeddingsConfig translates the loaded settings into an embeddings
// provider configuration.
func (c *Config) EmbeddingsConfig() embeddings.Config {
	cfg := embeddings.Config{Provider: c.EmbeddingsProvider}
	switch c.EmbeddingsProvider {
	case "voyage":
		cfg.Voyage = &embeddings.VoyageConfig{
			APIKey: c.VoyageKey,
			Model:  c.EmbeddingModel,
		}
	case "openai":
		cfg.OpenAI = &embeddings.OpenAIConfig{
			APIKey: c.OpenAIKey,
			Model:  c.EmbeddingModel,
		}
	}
	return cfg
}
