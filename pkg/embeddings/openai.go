package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbeddings implements Service using the OpenAI embeddings API.
type OpenAIEmbeddings struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// OpenAIConfig contains OpenAI embedding settings.
type OpenAIConfig struct {
	// APIKey for authentication.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model specifies which OpenAI embedding model to use.
	// Options: "text-embedding-3-small" (1536 dims),
	// "text-embedding-3-large" (3072 dims).
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// Validate checks required OpenAI settings.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai API key is required")
	}
	return nil
}

func init() {
	Register("openai", NewOpenAI)
}

func openAIModelDimensions(model string) int {
	switch model {
	case string(openai.LargeEmbedding3):
		return 3072
	case string(openai.SmallEmbedding3):
		return 1536
	case string(openai.AdaEmbeddingV2):
		return 1536
	default:
		return 1536
	}
}

// NewOpenAI creates an OpenAIEmbeddings instance.
func NewOpenAI(config Config) (Service, error) {
	cfg := config.OpenAI
	if cfg == nil {
		return nil, fmt.Errorf("openai configuration is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbeddings{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: openAIModelDimensions(model),
	}, nil
}

// Embed generates an embedding for a single text.
func (o *OpenAIEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	embs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (o *OpenAIEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the embedding dimension for the configured model.
func (o *OpenAIEmbeddings) Dimensions() int { return o.dimensions }

// ModelName returns the configured model name.
func (o *OpenAIEmbeddings) ModelName() string { return string(o.model) }

// Close releases client resources.
func (o *OpenAIEmbeddings) Close() error { return nil }
