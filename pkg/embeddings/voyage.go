package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// VoyageEmbeddings implements Service and Reranker against the Voyage AI
// HTTP API.
type VoyageEmbeddings struct {
	apiKey      string
	model       string
	rerankModel string
	baseURL     string
	dimensions  int
	truncation  bool
	client      *http.Client
	limiter     *rate.Limiter
}

// VoyageConfig contains Voyage AI API settings.
type VoyageConfig struct {
	// APIKey for authentication. Falls back to the VOYAGE_API_KEY
	// environment variable.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Model specifies which Voyage embedding model to use.
	// Options: "voyage-3" (1024 dims), "voyage-3-lite" (512 dims),
	// "voyage-code-3" (1024 dims), "voyage-finance-2", "voyage-law-2",
	// "voyage-multilingual-2".
	Model string `yaml:"model" json:"model"`

	// RerankModel is used by Rerank calls (default: "rerank-2").
	RerankModel string `yaml:"rerank_model,omitempty" json:"rerank_model,omitempty"`

	// BaseURL is the API endpoint (default: https://api.voyageai.com/v1).
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Truncation truncates inputs that exceed the model's context length
	// instead of failing (default: true upstream; zero value here means true).
	Truncation *bool `yaml:"truncation,omitempty" json:"truncation,omitempty"`

	// RequestsPerMinute throttles API calls client-side (default: 300).
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty"`
}

// Validate checks required Voyage settings.
func (c *VoyageConfig) Validate() error {
	if c.APIKey == "" && os.Getenv("VOYAGE_API_KEY") == "" {
		return fmt.Errorf("voyage API key is required (config or VOYAGE_API_KEY)")
	}
	return nil
}

var voyageModelDims = map[string]int{
	"voyage-3":              1024,
	"voyage-3-lite":         512,
	"voyage-code-3":         1024,
	"voyage-finance-2":      1024,
	"voyage-law-2":          1024,
	"voyage-multilingual-2": 1024,
}

func init() {
	Register("voyage", NewVoyage)
}

// NewVoyage creates a VoyageEmbeddings instance.
func NewVoyage(config Config) (Service, error) {
	cfg := config.Voyage
	if cfg == nil {
		return nil, fmt.Errorf("voyage configuration is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("VOYAGE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("voyage API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "voyage-3"
	}
	dims, ok := voyageModelDims[model]
	if !ok {
		return nil, fmt.Errorf("unknown voyage model: %s", model)
	}

	rerankModel := cfg.RerankModel
	if rerankModel == "" {
		rerankModel = "rerank-2"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}
	truncation := true
	if cfg.Truncation != nil {
		truncation = *cfg.Truncation
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}

	return &VoyageEmbeddings{
		apiKey:      apiKey,
		model:       model,
		rerankModel: rerankModel,
		baseURL:     baseURL,
		dimensions:  dims,
		truncation:  truncation,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 10),
	}, nil
}

type voyageEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	InputType  string   `json:"input_type,omitempty"`
	Truncation bool     `json:"truncation"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type voyageRerankRequest struct {
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	Model           string   `json:"model"`
	TopK            int      `json:"top_k,omitempty"`
	ReturnDocuments bool     `json:"return_documents"`
}

type voyageRerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
		Document       string  `json:"document,omitempty"`
	} `json:"data"`
}

// Embed generates an embedding for a single query-style text.
func (v *VoyageEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	embs, err := v.embed(ctx, []string{text}, "query")
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch generates document-style embeddings for multiple texts.
func (v *VoyageEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}
	return v.embed(ctx, texts, "document")
}

func (v *VoyageEmbeddings) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	reqBody := voyageEmbedRequest{
		Input:      texts,
		Model:      v.model,
		InputType:  inputType,
		Truncation: v.truncation,
	}
	var resp voyageEmbedResponse
	if err := v.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// Responses carry an index; order by it rather than trusting array order.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("voyage returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Rerank reorders documents by relevance to the query.
func (v *VoyageEmbeddings) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("documents cannot be empty")
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	reqBody := voyageRerankRequest{
		Query:           query,
		Documents:       documents,
		Model:           v.rerankModel,
		TopK:            topK,
		ReturnDocuments: true,
	}
	var resp voyageRerankResponse
	if err := v.post(ctx, "/rerank", reqBody, &resp); err != nil {
		return nil, err
	}

	results := make([]RerankResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		results = append(results, RerankResult{
			Index:    d.Index,
			Document: d.Document,
			Score:    d.RelevanceScore,
		})
	}
	return results, nil
}

func (v *VoyageEmbeddings) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("voyage API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voyage API returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Dimensions returns the embedding dimension for the configured model.
func (v *VoyageEmbeddings) Dimensions() int { return v.dimensions }

// ModelName returns the configured model name.
func (v *VoyageEmbeddings) ModelName() string { return v.model }

// Close releases client resources.
func (v *VoyageEmbeddings) Close() error {
	v.client.CloseIdleConnections()
	return nil
}
