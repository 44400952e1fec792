package agents

import (
	"context"
	"fmt"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/pkg/embeddings"
	"github.com/ringlet-dev/ringlet/pkg/llm"
	"github.com/ringlet-dev/ringlet/pkg/vectorstore"
)

// Message kinds handled by the responder role.
const (
	KindGenerate         = "agent.generate"
	KindGenerateResponse = "agent.generate_response"
)

func init() {
	Register("responder", NewResponder)
}

// responder answers questions by retrieving relevant passages and asking a
// completion model to ground its answer in them.
type responder struct {
	embedder     embeddings.Service
	index        vectorstore.Store
	completer    llm.Completer
	systemPrompt string
	topK         int
}

// NewResponder builds a responder agent. It requires Deps.Embedder,
// Deps.Index and Deps.Completer. The definition may override the system
// prompt with a "prompt" key and the passage count with "top_k".
func NewResponder(def Def, deps Deps) (*agent.Agent, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("responder %s: embedder is required", def.ID)
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("responder %s: vector store is required", def.ID)
	}
	if deps.Completer == nil {
		return nil, fmt.Errorf("responder %s: completer is required", def.ID)
	}

	caps := def.Capabilities
	if len(caps) == 0 {
		caps = []string{"generate"}
	}

	r := &responder{
		embedder:     deps.Embedder,
		index:        deps.Index,
		completer:    deps.Completer,
		systemPrompt: def.GetString("prompt", llm.DefaultSystemPrompt),
		topK:         DefaultTopK,
	}
	if k, ok := def.Extra["top_k"].(int); ok && k > 0 {
		r.topK = k
	}

	a := agent.New(def.ID, caps, baseOptions(def, deps)...)
	a.On(KindGenerate, r.handleGenerate)
	return a, nil
}

func (r *responder) handleGenerate(a *agent.Agent, env *agent.Envelope) error {
	question, ok := env.Data["question"].(string)
	if !ok || question == "" {
		return fmt.Errorf("generate message has no question")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("embed question: %w", err)
	}

	results, err := r.index.Search(ctx, embedding, r.topK, 0)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	passages := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, res.Document.Text)
		sources = append(sources, res.Document.ID)
	}

	prompt := llm.BuildRAGPrompt(question, passages, r.systemPrompt)
	answer, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	return a.Emit(agent.NewEnvelope(KindGenerateResponse, map[string]any{
		"agent_id": a.ID(),
		"question": question,
		"answer":   answer,
		"sources":  sources,
	}))
}
