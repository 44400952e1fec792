// Package driver feeds a coordinator from a line-delimited JSON input
// stream and grants scheduling quanta on a fixed tick.
//
// Each input line is one envelope whose data carries a "to" field naming
// the destination agent. Malformed lines and unknown destinations are
// counted and skipped; the ingest loop never halts on bad input.
package driver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/internal/observability"
	metrics "github.com/ringlet-dev/ringlet/pkg/observability"
	"github.com/ringlet-dev/ringlet/pkg/transcript"
)

// MaxLineBytes bounds the size of one input line.
const MaxLineBytes = 1 << 20

// Driver couples an input stream to a coordinator.
type Driver struct {
	coord       *agent.Coordinator
	transcripts transcript.Store
	tick        time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithTranscripts records every routed envelope in a transcript store.
func WithTranscripts(store transcript.Store) Option {
	return func(d *Driver) { d.transcripts = store }
}

// WithTick sets the scheduling interval (default 100ms).
func WithTick(tick time.Duration) Option {
	return func(d *Driver) {
		if tick > 0 {
			d.tick = tick
		}
	}
}

// New creates a driver for a coordinator.
func New(coord *agent.Coordinator, opts ...Option) *Driver {
	d := &Driver{
		coord: coord,
		tick:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ingest reads envelopes from r until EOF or context cancellation. It
// returns nil on EOF and the context error on cancellation; scanner
// failures (for example an oversized line) are returned as errors.
func (d *Driver) Ingest(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.ingestLine(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func (d *Driver) ingestLine(ctx context.Context, line string) {
	env, err := agent.DecodeEnvelope([]byte(line))
	if err != nil {
		log.Printf("Driver: skipping malformed line: %v", err)
		metrics.RecordIngest("malformed")
		return
	}

	to, _ := env.Data["to"].(string)
	if to == "" {
		log.Printf("Driver: skipping %s message with no destination", env.Type)
		metrics.RecordIngest("no_destination")
		return
	}

	spanCtx, span := observability.StartSpan(ctx, "driver.route",
		attribute.String("agent.id", to),
		attribute.String("message.kind", env.Type),
	)
	defer span.End()

	if err := d.coord.Route(to, env); err != nil {
		span.RecordError(err)
		if errors.Is(err, agent.ErrAgentNotFound) {
			metrics.RecordRoute(to, env.Type, "unknown_agent")
		} else {
			metrics.RecordRoute(to, env.Type, "error")
		}
		metrics.RecordIngest("dropped")
		return
	}

	metrics.RecordRoute(to, env.Type, "ok")
	metrics.RecordIngest("ok")

	if d.transcripts != nil {
		e := transcript.NewEntry(to, env.Type, env.Data)
		if err := d.transcripts.Append(spanCtx, e); err != nil {
			log.Printf("Driver: transcript append failed: %v", err)
		}
	}
}

// RunScheduler grants scheduling quanta on every tick until the context is
// canceled. It always returns the context error.
func (d *Driver) RunScheduler(ctx context.Context) error {
	t := time.NewTicker(d.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			d.scheduleOnce(ctx)
		}
	}
}

func (d *Driver) scheduleOnce(ctx context.Context) {
	_, span := observability.StartSpan(ctx, "driver.schedule")
	defer span.End()

	start := time.Now()
	d.coord.Schedule()
	metrics.RecordSchedule(time.Since(start))

	stats := d.coord.Stats()
	metrics.SetRegisteredAgents(stats.Count)
	for _, id := range stats.AgentIDs {
		if a, err := d.coord.Get(id); err == nil {
			metrics.SetQueueDepth(id, a.QueueLen())
		}
	}
}
