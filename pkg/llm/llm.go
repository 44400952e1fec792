// Package llm provides the completion-generating boundary consumed by
// responder agents. The runtime treats completion as a black box callable:
// prompt in, answer out.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls the underlying function.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// OpenAIConfig configures the OpenAI-backed completer.
type OpenAIConfig struct {
	// APIKey for authentication.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model is the chat model (default: gpt-4o-mini).
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// MaxTokens caps the completion length (default: 1000).
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Temperature controls sampling (default: 0.7).
	Temperature float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// OpenAICompleter implements Completer using the OpenAI chat API.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAICompleter creates a completer from config.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Complete sends the prompt as a single user message.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// DefaultSystemPrompt frames retrieval-grounded answering.
const DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the numbered context passages. If the context does not contain the answer, say so."

// BuildRAGPrompt assembles a retrieval-augmented prompt: an instruction,
// the numbered context passages, and the question.
func BuildRAGPrompt(question string, passages []string, systemPrompt string) string {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, p)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
