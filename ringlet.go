// Package ringlet assembles the cooperative agent runtime: a coordinator,
// the agents declared in configuration, the input driver and the
// supporting services (transcripts, metrics, tracing).
package ringlet

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/agents"
	"github.com/ringlet-dev/ringlet/internal/driver"
	"github.com/ringlet-dev/ringlet/internal/observability"
	"github.com/ringlet-dev/ringlet/pkg/config"
	"github.com/ringlet-dev/ringlet/pkg/embeddings"
	"github.com/ringlet-dev/ringlet/pkg/llm"
	metrics "github.com/ringlet-dev/ringlet/pkg/observability"
	"github.com/ringlet-dev/ringlet/pkg/transcript"
	"github.com/ringlet-dev/ringlet/pkg/vectorstore"
)

// Runtime is a fully wired agent system.
type Runtime struct {
	cfg         *config.Config
	coord       *agent.Coordinator
	driver      *driver.Driver
	transcripts transcript.Store
	embedder    embeddings.Service
	obsServer   *metrics.Server
	cronRunner  *cron.Cron
	output      io.Writer
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithOutput redirects agent output (default os.Stdout).
func WithOutput(w io.Writer) RuntimeOption {
	return func(rt *Runtime) { rt.output = w }
}

// Run starts the runtime from a config file and blocks until SIGINT or
// SIGTERM. Input is read from stdin.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return RunWithConfig(cfg)
}

// RunWithConfig starts the runtime with the provided config and blocks
// until SIGINT or SIGTERM.
func RunWithConfig(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Run(ctx, os.Stdin)
}

// NewRuntime builds a runtime from configuration: shared services first,
// then one agent per definition, registered in declaration order.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := observability.InitFromEnv(); err != nil {
		log.Printf("Warning: failed to initialize tracing: %v", err)
	}

	rt := &Runtime{
		cfg:    cfg,
		coord:  agent.NewCoordinator(cfg.Runtime.MaxAgents),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(rt)
	}

	deps, err := rt.buildDeps()
	if err != nil {
		return nil, err
	}

	for _, def := range cfg.Agents {
		if def.MaxQueueSize == 0 {
			def.MaxQueueSize = cfg.Runtime.MaxQueueSize
		}
		a, err := agents.Create(def, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %s: %w", def.ID, err)
		}
		if err := rt.coord.Register(a); err != nil {
			return nil, fmt.Errorf("failed to register agent %s: %w", def.ID, err)
		}
		log.Printf("Registered agent: %s (role: %s)", def.ID, def.Role)
	}

	store, err := rt.buildTranscripts()
	if err != nil {
		return nil, err
	}
	rt.transcripts = store

	var driverOpts []driver.Option
	driverOpts = append(driverOpts, driver.WithTick(cfg.Runtime.TickInterval.Duration))
	if rt.transcripts != nil {
		driverOpts = append(driverOpts, driver.WithTranscripts(rt.transcripts))
	}
	rt.driver = driver.New(rt.coord, driverOpts...)

	if cfg.Observability.Enabled {
		metrics.InitMetrics()
		rt.obsServer = metrics.NewServer(cfg.Observability.Addr, rt.healthChecker(), func() any {
			return rt.coord.Stats()
		})
	}

	if cfg.Observability.StatsSchedule != "" {
		rt.cronRunner = cron.New()
		_, err := rt.cronRunner.AddFunc(cfg.Observability.StatsSchedule, func() {
			stats := rt.coord.Stats()
			log.Printf("Stats: %d/%d agents registered: %v", stats.Count, stats.Bound, stats.AgentIDs)
		})
		if err != nil {
			return nil, fmt.Errorf("invalid stats schedule: %w", err)
		}
	}

	return rt, nil
}

// buildDeps constructs the shared services the configured roles need.
// Embeddings and the completer are only built when some agent uses them.
func (rt *Runtime) buildDeps() (agents.Deps, error) {
	deps := agents.Deps{Output: rt.output}

	needsRetrieval := false
	needsCompletion := false
	for _, def := range rt.cfg.Agents {
		switch def.Role {
		case "retriever":
			needsRetrieval = true
		case "responder":
			needsRetrieval = true
			needsCompletion = true
		}
	}

	if needsRetrieval {
		emb, err := embeddings.New(rt.cfg.EmbeddingsConfig())
		if err != nil {
			return deps, fmt.Errorf("failed to create embeddings service: %w", err)
		}
		rt.embedder = emb
		deps.Embedder = emb

		store, err := vectorstore.NewMemory(vectorstore.MemoryConfig{
			Dimensions: emb.Dimensions(),
		})
		if err != nil {
			return deps, fmt.Errorf("failed to create vector store: %w", err)
		}
		deps.Index = store
	}

	if needsCompletion {
		completer, err := llm.NewOpenAICompleter(llm.OpenAIConfig{
			APIKey:      rt.cfg.OpenAIKey,
			Model:       rt.cfg.CompletionModel,
			MaxTokens:   rt.cfg.MaxTokens,
			Temperature: float32(rt.cfg.Temperature),
		})
		if err != nil {
			return deps, fmt.Errorf("failed to create completer: %w", err)
		}
		deps.Completer = completer
	}

	return deps, nil
}

func (rt *Runtime) buildTranscripts() (transcript.Store, error) {
	switch rt.cfg.Transcript.Backend {
	case "redis":
		store, err := transcript.NewRedis(transcript.RedisConfig{
			Addr:       rt.cfg.Transcript.RedisAddr,
			DB:         rt.cfg.Transcript.RedisDB,
			TTL:        rt.cfg.Transcript.TTL.Duration,
			MaxEntries: rt.cfg.Transcript.MaxEntries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis transcript store: %w", err)
		}
		return store, nil
	default:
		return transcript.NewMemory(rt.cfg.Transcript.MaxEntries), nil
	}
}

func (rt *Runtime) healthChecker() *metrics.HealthChecker {
	hc := metrics.NewHealthChecker()
	hc.RegisterCheck(metrics.PingCheck())
	if redisStore, ok := rt.transcripts.(*transcript.Redis); ok {
		hc.RegisterCheck(metrics.StoreCheck("transcript", redisStore.Ping))
	}
	return hc
}

// Coordinator exposes the underlying coordinator, mainly for embedding the
// runtime in other programs and for tests.
func (rt *Runtime) Coordinator() *agent.Coordinator {
	return rt.coord
}

// Transcripts exposes the transcript store.
func (rt *Runtime) Transcripts() transcript.Store {
	return rt.transcripts
}

// Run ingests envelopes from input and schedules agents until the context
// is canceled or the input reaches EOF. On EOF the runtime keeps
// scheduling so queued work drains; cancel the context to exit.
func (rt *Runtime) Run(ctx context.Context, input io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := rt.driver.Ingest(gctx, input); err != nil && err != context.Canceled {
			return fmt.Errorf("ingest failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := rt.driver.RunScheduler(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if rt.obsServer != nil {
		g.Go(func() error {
			if err := rt.obsServer.Start(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("observability server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return rt.obsServer.Shutdown(shutdownCtx)
		})
	}

	if rt.cronRunner != nil {
		rt.cronRunner.Start()
		defer rt.cronRunner.Stop()
	}

	return g.Wait()
}

// Close stops all agents and releases runtime resources.
func (rt *Runtime) Close() error {
	rt.coord.Shutdown()

	var firstErr error
	if rt.transcripts != nil {
		if err := rt.transcripts.Close(); err != nil {
			firstErr = err
		}
	}
	if rt.embedder != nil {
		if err := rt.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
