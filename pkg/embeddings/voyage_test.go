package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVoyageTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/embeddings":
			var req voyageEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			resp := voyageEmbedResponse{Model: req.Model}
			for i := range req.Input {
				resp.Data = append(resp.Data, struct {
					Embedding []float32 `json:"embedding"`
					Index     int       `json:"index"`
				}{Embedding: []float32{float32(i), 0.5, 0.25}, Index: i})
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))

		case "/rerank":
			var req voyageRerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			// Reverse order with descending scores.
			resp := voyageRerankResponse{}
			for i := len(req.Documents) - 1; i >= 0; i-- {
				resp.Data = append(resp.Data, struct {
					Index          int     `json:"index"`
					RelevanceScore float64 `json:"relevance_score"`
					Document       string  `json:"document,omitempty"`
				}{Index: i, RelevanceScore: float64(i) / 10, Document: req.Documents[i]})
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))

		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestVoyage(t *testing.T, baseURL string) *VoyageEmbeddings {
	t.Helper()
	svc, err := NewVoyage(Config{
		Provider: "voyage",
		Voyage: &VoyageConfig{
			APIKey:  "test-key",
			Model:   "voyage-3",
			BaseURL: baseURL,
		},
	})
	require.NoError(t, err)
	return svc.(*VoyageEmbeddings)
}

func TestVoyageEmbed(t *testing.T) {
	srv := newVoyageTestServer(t)
	defer srv.Close()

	v := newTestVoyage(t, srv.URL)
	defer v.Close()

	emb, err := v.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, emb, 3)

	assert.Equal(t, 1024, v.Dimensions())
	assert.Equal(t, "voyage-3", v.ModelName())
}

func TestVoyageEmbedBatch(t *testing.T) {
	srv := newVoyageTestServer(t)
	defer srv.Close()

	v := newTestVoyage(t, srv.URL)
	defer v.Close()

	embs, err := v.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, embs, 3)
	// Index ordering preserved.
	assert.Equal(t, float32(0), embs[0][0])
	assert.Equal(t, float32(2), embs[2][0])
}

func TestVoyageEmbedEmptyInput(t *testing.T) {
	srv := newVoyageTestServer(t)
	defer srv.Close()

	v := newTestVoyage(t, srv.URL)
	defer v.Close()

	_, err := v.Embed(context.Background(), "")
	assert.Error(t, err)

	_, err = v.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestVoyageRerank(t *testing.T) {
	srv := newVoyageTestServer(t)
	defer srv.Close()

	v := newTestVoyage(t, srv.URL)
	defer v.Close()

	results, err := v.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, "c", results[0].Document)
}

func TestVoyageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := newTestVoyage(t, srv.URL)
	defer v.Close()

	_, err := v.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestVoyageUnknownModel(t *testing.T) {
	_, err := NewVoyage(Config{
		Provider: "voyage",
		Voyage:   &VoyageConfig{APIKey: "k", Model: "voyage-99"},
	})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"missing provider", Config{}, true},
		{"unsupported provider", Config{Provider: "pinecone"}, true},
		{"voyage without block", Config{Provider: "voyage"}, true},
		{"openai without block", Config{Provider: "openai"}, true},
		{"openai without key", Config{Provider: "openai", OpenAI: &OpenAIConfig{}}, true},
		{"valid openai", Config{Provider: "openai", OpenAI: &OpenAIConfig{APIKey: "k"}}, false},
		{"valid voyage", Config{Provider: "voyage", Voyage: &VoyageConfig{APIKey: "k"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
