// Package embeddings provides text embedding and reranking clients.
//
// The runtime consumes these as black boxes: they supply message-handling
// bodies for retrieval agents but contribute no scheduling logic. Providers
// register themselves by name; New builds a Service from configuration.
package embeddings

import (
	"context"
	"fmt"
	"sync"
)

// Service is the main interface for generating text embeddings.
type Service interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimension size of the embeddings.
	Dimensions() int

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Close releases any resources held by the service.
	Close() error
}

// RerankResult is one scored document from a rerank call.
type RerankResult struct {
	Index    int     `json:"index"`
	Document string  `json:"document,omitempty"`
	Score    float64 `json:"relevance_score"`
}

// Reranker reorders candidate documents by relevance to a query. Providers
// that support reranking implement it in addition to Service.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider specifies which embedding service to use.
	// Supported values: "voyage", "openai".
	Provider string `yaml:"provider" json:"provider"`

	Voyage *VoyageConfig `yaml:"voyage,omitempty" json:"voyage,omitempty"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty" json:"openai,omitempty"`
}

// Validate checks if the configuration is complete for its provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case "voyage":
		if c.Voyage == nil {
			return fmt.Errorf("voyage configuration is required when provider is 'voyage'")
		}
		return c.Voyage.Validate()
	case "openai":
		if c.OpenAI == nil {
			return fmt.Errorf("openai configuration is required when provider is 'openai'")
		}
		return c.OpenAI.Validate()
	case "":
		return fmt.Errorf("provider must be specified")
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
}

// Factory creates a Service from a Config.
type Factory func(Config) (Service, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a provider available by name. Called from provider init
// functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New builds a Service for the configured provider.
func New(config Config) (Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	registryMu.RLock()
	factory, ok := registry[config.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no embedding provider registered for %q", config.Provider)
	}
	return factory(config)
}
