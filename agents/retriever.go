package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/pkg/embeddings"
	"github.com/ringlet-dev/ringlet/pkg/vectorstore"
)

// Message kinds handled by the retriever role.
const (
	KindIndex         = "agent.index"
	KindIndexed       = "agent.indexed"
	KindQuery         = "agent.query"
	KindQueryResponse = "agent.query_response"
)

// DefaultTopK is the number of passages returned when a query does not
// request a count.
const DefaultTopK = 3

const handlerTimeout = 30 * time.Second

func init() {
	Register("retriever", NewRetriever)
}

// retriever embeds incoming text and serves similarity queries against a
// vector store.
type retriever struct {
	embedder embeddings.Service
	index    vectorstore.Store
}

// NewRetriever builds a retriever agent. It requires Deps.Embedder and
// Deps.Index.
func NewRetriever(def Def, deps Deps) (*agent.Agent, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("retriever %s: embedder is required", def.ID)
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("retriever %s: vector store is required", def.ID)
	}

	caps := def.Capabilities
	if len(caps) == 0 {
		caps = []string{"index", "query"}
	}

	r := &retriever{embedder: deps.Embedder, index: deps.Index}
	a := agent.New(def.ID, caps, baseOptions(def, deps)...)
	a.On(KindIndex, r.handleIndex)
	a.On(KindQuery, r.handleQuery)
	return a, nil
}

// handleIndex embeds the message text and stores it. The data map carries
// "text" (required), plus optional "id" and string-valued metadata under
// "metadata".
func (r *retriever) handleIndex(a *agent.Agent, env *agent.Envelope) error {
	text, ok := env.Data["text"].(string)
	if !ok || text == "" {
		return fmt.Errorf("index message has no text")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}

	id, _ := env.Data["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	doc := vectorstore.Document{
		ID:        id,
		Text:      text,
		Metadata:  stringMetadata(env.Data["metadata"]),
		Embedding: embedding,
	}
	if err := r.index.Upsert(ctx, []vectorstore.Document{doc}); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	return a.Emit(agent.NewEnvelope(KindIndexed, map[string]any{
		"agent_id":    a.ID(),
		"document_id": id,
		"count":       r.index.Count(),
	}))
}

// handleQuery embeds the query text and answers with the best matching
// passages.
func (r *retriever) handleQuery(a *agent.Agent, env *agent.Envelope) error {
	query, ok := env.Data["query"].(string)
	if !ok || query == "" {
		return fmt.Errorf("query message has no query text")
	}

	topK := DefaultTopK
	if k, ok := env.Data["top_k"].(float64); ok && k > 0 {
		topK = int(k)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	results, err := r.index.Search(ctx, embedding, topK, 0)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	passages := make([]map[string]any, 0, len(results))
	for _, res := range results {
		passages = append(passages, map[string]any{
			"id":    res.Document.ID,
			"text":  res.Document.Text,
			"score": res.Score,
		})
	}

	return a.Emit(agent.NewEnvelope(KindQueryResponse, map[string]any{
		"agent_id": a.ID(),
		"query":    query,
		"passages": passages,
	}))
}

func stringMetadata(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	md := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			md[k] = s
		}
	}
	return md
}
