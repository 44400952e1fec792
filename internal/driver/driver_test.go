package driver

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ringlet-dev/ringlet/agent"
	"github.com/ringlet-dev/ringlet/pkg/transcript"
)

func startAgent(t *testing.T, coord *agent.Coordinator, id string, out *bytes.Buffer) *agent.Agent {
	t.Helper()
	a := agent.New(id, []string{"echo"}, agent.WithOutput(out))
	if err := coord.Register(a); err != nil {
		t.Fatalf("Register %s failed: %v", id, err)
	}
	return a
}

func kinds(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		env, err := agent.DecodeEnvelope(scanner.Bytes())
		if err != nil {
			t.Fatalf("output line should decode: %v", err)
		}
		out = append(out, env.Type)
	}
	return out
}

func TestIngestRoutesByDestination(t *testing.T) {
	coord := agent.NewCoordinator(10)
	defer coord.Shutdown()

	var buf bytes.Buffer
	startAgent(t, coord, "echo-1", &buf)

	input := `{"type": "agent.ping", "data": {"to": "echo-1"}}` + "\n"
	d := New(coord)
	if err := d.Ingest(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got := kinds(t, &buf)
	want := []string{agent.KindRegister, agent.KindPong}
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestIngestSkipsBadLines(t *testing.T) {
	coord := agent.NewCoordinator(10)
	defer coord.Shutdown()

	var buf bytes.Buffer
	startAgent(t, coord, "echo-1", &buf)

	// Malformed, missing destination, unknown agent and blank lines are
	// all skipped; only the last line is delivered.
	input := strings.Join([]string{
		`{not json`,
		`{"type": "agent.ping", "data": {}}`,
		`{"type": "agent.ping", "data": {"to": "ghost"}}`,
		``,
		`{"type": "agent.ping", "data": {"to": "echo-1"}}`,
	}, "\n") + "\n"

	d := New(coord)
	if err := d.Ingest(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest should survive bad lines: %v", err)
	}

	var pongs int
	for _, k := range kinds(t, &buf) {
		if k == agent.KindPong {
			pongs++
		}
	}
	if pongs != 1 {
		t.Errorf("expected exactly 1 pong, got %d", pongs)
	}
}

func TestIngestCanceled(t *testing.T) {
	coord := agent.NewCoordinator(10)
	defer coord.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := `{"type": "agent.ping", "data": {"to": "echo-1"}}` + "\n"
	d := New(coord)
	if err := d.Ingest(ctx, strings.NewReader(input)); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIngestRecordsTranscript(t *testing.T) {
	coord := agent.NewCoordinator(10)
	defer coord.Shutdown()

	var buf bytes.Buffer
	startAgent(t, coord, "echo-1", &buf)

	store := transcript.NewMemory(0)
	d := New(coord, WithTranscripts(store))

	input := `{"type": "agent.ping", "data": {"to": "echo-1"}}` + "\n" +
		`{"type": "agent.ping", "data": {"to": "ghost"}}` + "\n"
	if err := d.Ingest(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	entries, err := store.Recent(context.Background(), "echo-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 transcript entry, got %d", len(entries))
	}
	if entries[0].Kind != agent.KindPing {
		t.Errorf("expected kind %s, got %s", agent.KindPing, entries[0].Kind)
	}

	// Undeliverable messages are not recorded.
	ghost, err := store.Recent(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(ghost) != 0 {
		t.Errorf("expected no entries for ghost, got %d", len(ghost))
	}
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	coord := agent.NewCoordinator(10)
	defer coord.Shutdown()

	var buf bytes.Buffer
	startAgent(t, coord, "echo-1", &buf)

	ctx, cancel := context.WithCancel(context.Background())
	d := New(coord, WithTick(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- d.RunScheduler(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
