package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/agents"
	"github.com/ringlet-dev/ringlet/pkg/config"
	"github.com/ringlet-dev/ringlet/pkg/embeddings"
	"github.com/ringlet-dev/ringlet/pkg/index"
	"github.com/ringlet-dev/ringlet/pkg/llm"
	"github.com/ringlet-dev/ringlet/pkg/vectorstore"
)

func newChatCmd() *cobra.Command {
	var (
		configFile string
		indexDir   string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive retrieval chat over an indexed directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if configFile != "" {
				cfg, err = config.Load(configFile)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			return runChat(cmd.Context(), cfg, indexDir, topK)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file (optional)")
	cmd.Flags().StringVarP(&indexDir, "dir", "d", ".", "directory to index")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "passages retrieved per question")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, indexDir string, topK int) error {
	embedder, err := embeddings.New(cfg.EmbeddingsConfig())
	if err != nil {
		return fmt.Errorf("failed to create embeddings service: %w", err)
	}
	defer embedder.Close()

	store, err := vectorstore.NewMemory(vectorstore.MemoryConfig{
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		return err
	}

	completer, err := llm.NewOpenAICompleter(llm.OpenAIConfig{
		APIKey:      cfg.OpenAIKey,
		Model:       cfg.CompletionModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
	})
	if err != nil {
		return fmt.Errorf("failed to create completer: %w", err)
	}

	if err := indexDirectory(ctx, indexDir, embedder, store); err != nil {
		return err
	}

	// Questions go through a real responder agent; its replies land in out.
	var out bytes.Buffer
	coord := agent.NewCoordinator(cfg.Runtime.MaxAgents)
	defer coord.Shutdown()

	responder, err := agents.Create(agents.Def{
		ID:    "responder",
		Role:  "responder",
		Extra: map[string]any{"top_k": topK},
	}, agents.Deps{
		Output:    &out,
		Embedder:  embedder,
		Index:     store,
		Completer: completer,
	})
	if err != nil {
		return err
	}
	if err := coord.Register(responder); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("Indexed %d chunks from %s. Ask a question, or /quit to exit.\n", store.Count(), indexDir)

	for {
		input, err := line.Prompt("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			return nil
		}
		line.AppendHistory(input)

		out.Reset()
		env := agent.NewEnvelope(agents.KindGenerate, map[string]any{"question": input})
		if err := coord.Route("responder", env); err != nil {
			log.Printf("Error: %v", err)
			continue
		}

		answer, sources, err := lastAnswer(&out)
		if err != nil {
			log.Printf("Error: %v", err)
			continue
		}

		fmt.Println(answer)
		if len(sources) > 0 {
			fmt.Printf("(sources: %s)\n", strings.Join(sources, ", "))
		}
	}
}

// lastAnswer extracts the newest generate_response from the agent's output.
// Delivery is synchronous, so the reply is present once Route returns; an
// empty buffer means the handler failed and swallowed its error.
func lastAnswer(out *bytes.Buffer) (string, []string, error) {
	var answer string
	var sources []string
	found := false

	scanner := bufio.NewScanner(bytes.NewReader(out.Bytes()))
	for scanner.Scan() {
		env, err := agent.DecodeEnvelope(scanner.Bytes())
		if err != nil || env.Type != agents.KindGenerateResponse {
			continue
		}
		answer, _ = env.Data["answer"].(string)
		sources = sources[:0]
		if raw, ok := env.Data["sources"].([]any); ok {
			for _, s := range raw {
				if id, ok := s.(string); ok {
					sources = append(sources, id)
				}
			}
		}
		found = true
	}
	if !found {
		return "", nil, fmt.Errorf("no answer produced; check the logs above")
	}
	return answer, sources, nil
}

// indexDirectory chunks every indexable file under root, embeds the chunks
// in batches and stores them.
func indexDirectory(ctx context.Context, root string, embedder embeddings.Service, store vectorstore.Store) error {
	chunks, err := index.New().IndexDirectory(root, root)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", root, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	const batchSize = 64
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}

		docs := make([]vectorstore.Document, len(batch))
		for i, c := range batch {
			docs[i] = vectorstore.Document{
				ID:   c.ID,
				Text: c.Text,
				Metadata: map[string]string{
					"filename": c.Filename,
					"language": c.Language,
				},
				Embedding: vectors[i],
			}
		}
		if err := store.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	return nil
}
