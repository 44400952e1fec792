package agent

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func newBufAgent(id string, caps ...string) (*Agent, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(id, caps, WithOutput(&buf)), &buf
}

func TestCoordinatorRegister(t *testing.T) {
	c := NewCoordinator(10)

	a, _ := newBufAgent("echo-1", "echo")
	if err := c.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if a.State() != StateRunning {
		t.Errorf("registered agent state = %s, want running", a.State())
	}
	if got := c.Stats().Count; got != 1 {
		t.Errorf("registry size = %d, want 1", got)
	}

	dup, _ := newBufAgent("echo-1")
	if err := c.Register(dup); err == nil {
		t.Error("expected duplicate id registration to fail")
	}
	c.Shutdown()
}

func TestCoordinatorCapacity(t *testing.T) {
	c := NewCoordinator(2)

	for i := 0; i < 2; i++ {
		a, _ := newBufAgent(fmt.Sprintf("echo-%d", i))
		if err := c.Register(a); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}

	extra, _ := newBufAgent("echo-2")
	err := c.Register(extra)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected *CapacityError, got %v", err)
	}
	if capErr.Bound != 2 {
		t.Errorf("CapacityError bound = %d, want 2", capErr.Bound)
	}

	// Rejected registration leaves no partial state behind.
	stats := c.Stats()
	if stats.Count != 2 || len(stats.AgentIDs) != 2 {
		t.Errorf("stats after rejection = %+v, want 2 agents", stats)
	}
	if extra.State() != StateCreated {
		t.Errorf("rejected agent state = %s, want created", extra.State())
	}
	c.Shutdown()
}

func TestCoordinatorUnregister(t *testing.T) {
	c := NewCoordinator(10)
	a, _ := newBufAgent("echo-1")
	if err := c.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	c.Unregister("echo-1")
	if got := c.Stats().Count; got != 0 {
		t.Errorf("registry size = %d, want 0", got)
	}
	if a.State() != StateStopped {
		t.Errorf("unregistered agent state = %s, want stopped", a.State())
	}

	// Unknown id is a no-op, not a failure.
	c.Unregister("no-such-agent")
	if got := c.Stats().Count; got != 0 {
		t.Errorf("registry size = %d, want 0", got)
	}
}

func TestCoordinatorRoute(t *testing.T) {
	c := NewCoordinator(10)
	a, buf := newBufAgent("echo-1", "echo")
	if err := c.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer c.Shutdown()

	if err := c.Route("echo-1", NewEnvelope(KindPing, nil)); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	pongs := linesOfKind(collectLines(t, buf), KindPong)
	if len(pongs) != 1 {
		t.Fatalf("expected 1 pong, got %d", len(pongs))
	}

	err := c.Route("missing", NewEnvelope(KindPing, nil))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Route to unknown id = %v, want ErrAgentNotFound", err)
	}
}

func TestRoundRobinFairness(t *testing.T) {
	c := NewCoordinator(10)
	quanta := make(map[string]int)

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		id := id
		a := New(id, nil,
			WithOutput(&bytes.Buffer{}),
			WithHandler("test.tick", func(a *Agent, env *Envelope) error {
				quanta[id]++
				return nil
			}),
		)
		if err := c.Register(a); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}
	defer c.Shutdown()

	// Give every agent one staged message; a quantum drains it.
	for _, id := range ids {
		a, err := c.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		stage(a, NewEnvelope("test.tick", nil))
	}

	before := c.Stats().AgentIDs
	for range ids {
		c.Schedule()
	}

	for _, id := range ids {
		if quanta[id] != 1 {
			t.Errorf("agent %s got %d quanta, want exactly 1", id, quanta[id])
		}
	}

	// After exactly N quanta the rotation is back to its starting order.
	after := c.Stats().AgentIDs
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("rotation changed: before %v, after %v", before, after)
		}
	}
}

func TestScheduleEmptyRotation(t *testing.T) {
	c := NewCoordinator(10)
	c.Schedule() // no-op, must not panic
}

func TestScheduleSkipsFinishedAgent(t *testing.T) {
	c := NewCoordinator(10)
	a, _ := newBufAgent("short-lived")
	if err := c.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	a.Stop() // task finished but still registered

	// Rotation still advances; the dead agent is simply not resumed.
	c.Schedule()
	c.Schedule()
	if got := c.Stats().Count; got != 1 {
		t.Errorf("registry size = %d, want 1", got)
	}
}

func TestStatsScenario(t *testing.T) {
	c := NewCoordinator(10)
	bufs := make(map[string]*bytes.Buffer)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("echo-%d", i)
		a, buf := newBufAgent(id, "echo")
		bufs[id] = buf
		if err := c.Register(a); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}
	defer c.Shutdown()

	stats := c.Stats()
	if stats.Count != 3 {
		t.Errorf("stats count = %d, want 3", stats.Count)
	}
	if stats.Bound != 10 {
		t.Errorf("stats bound = %d, want 10", stats.Bound)
	}

	if err := c.Route("echo-1", NewEnvelope(KindPing, nil)); err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	pongs := linesOfKind(collectLines(t, bufs["echo-1"]), KindPong)
	if len(pongs) != 1 {
		t.Fatalf("expected exactly 1 pong, got %d", len(pongs))
	}
	if pongs[0].Data["agent_id"] != "echo-1" {
		t.Errorf("pong agent_id = %v, want echo-1", pongs[0].Data["agent_id"])
	}

	a, err := c.Get("echo-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Metrics().Received; got != 1 {
		t.Errorf("echo-1 received counter = %d, want 1", got)
	}
}

func TestShutdownStopsAll(t *testing.T) {
	c := NewCoordinator(10)
	var agents []*Agent
	for i := 0; i < 3; i++ {
		a, _ := newBufAgent(fmt.Sprintf("echo-%d", i))
		agents = append(agents, a)
		if err := c.Register(a); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	c.Shutdown()
	if got := c.Stats().Count; got != 0 {
		t.Errorf("registry size after shutdown = %d, want 0", got)
	}
	for _, a := range agents {
		if a.State() != StateStopped {
			t.Errorf("agent %s state = %s, want stopped", a.ID(), a.State())
		}
	}
}
