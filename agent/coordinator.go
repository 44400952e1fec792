package agent

import (
	"fmt"
	"log"
	"sync"
)

// DefaultBound is the registry capacity used when NewCoordinator is given a
// non-positive bound.
const DefaultBound = 100

// Stats is a read-only snapshot of a coordinator's registry.
type Stats struct {
	Count    int      `json:"total_agents"`
	Bound    int      `json:"max_agents"`
	AgentIDs []string `json:"agent_ids"`
}

// Coordinator owns a capacity-bounded registry of agents and a round-robin
// rotation. It routes addressed messages and drives scheduling quanta.
// Registry and rotation are mutated only through Coordinator operations;
// len(registry) == len(rotation) and the rotation has no duplicates.
type Coordinator struct {
	mu       sync.Mutex
	bound    int
	agents   map[string]*Agent
	rotation []string
}

// NewCoordinator creates a coordinator with a fixed registry bound.
func NewCoordinator(bound int) *Coordinator {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Coordinator{
		bound:  bound,
		agents: make(map[string]*Agent),
	}
}

// Bound returns the maximum number of simultaneously registered agents.
func (c *Coordinator) Bound() int { return c.bound }

// Register inserts the agent into the registry, appends its id to the
// rotation tail and starts it. Fails with *CapacityError when the registry
// is at its bound; the check and the mutation are atomic within this call,
// so a rejected registration leaves no partial state behind.
func (c *Coordinator) Register(a *Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.agents) >= c.bound {
		return &CapacityError{Bound: c.bound}
	}
	id := a.ID()
	if _, exists := c.agents[id]; exists {
		return fmt.Errorf("agent %s already registered", id)
	}

	c.agents[id] = a
	c.rotation = append(c.rotation, id)

	if err := a.Start(); err != nil {
		delete(c.agents, id)
		c.rotation = c.rotation[:len(c.rotation)-1]
		return fmt.Errorf("start agent %s: %w", id, err)
	}
	return nil
}

// Unregister stops and removes the agent. Unknown ids are a no-op.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	a, exists := c.agents[id]
	if !exists {
		c.mu.Unlock()
		return
	}
	delete(c.agents, id)
	for i, rid := range c.rotation {
		if rid == id {
			c.rotation = append(c.rotation[:i], c.rotation[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	a.Stop()
}

// Route forwards the envelope to the named agent's delivery entry point.
// An unknown id yields ErrAgentNotFound, which is non-fatal: the message is
// reported undeliverable and the coordinator carries on.
func (c *Coordinator) Route(id string, env *Envelope) error {
	c.mu.Lock()
	a, exists := c.agents[id]
	c.mu.Unlock()

	if !exists {
		log.Printf("Coordinator: undeliverable %s: agent %s not found", env.Type, id)
		return fmt.Errorf("route to %s: %w", id, ErrAgentNotFound)
	}
	return a.Receive(env)
}

// Get retrieves a registered agent by id.
func (c *Coordinator) Get(id string) (*Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, exists := c.agents[id]
	if !exists {
		return nil, fmt.Errorf("get %s: %w", id, ErrAgentNotFound)
	}
	return a, nil
}

// Schedule runs one scheduling quantum: the rotation head moves to the tail
// unconditionally, and if that agent still exists and its task has not
// finished it is resumed with an empty hand-off to drain any backlog. A
// caller is expected to invoke this on a fixed cadence; it is the sole
// driver of agent progress other than direct message delivery.
func (c *Coordinator) Schedule() {
	c.mu.Lock()
	if len(c.rotation) == 0 {
		c.mu.Unlock()
		return
	}
	id := c.rotation[0]
	c.rotation = append(c.rotation[1:], id)
	a := c.agents[id]
	c.mu.Unlock()

	if a == nil {
		return
	}
	select {
	case <-a.Done():
		return
	default:
	}
	a.Resume()
}

// Stats returns a read-only snapshot of the registry.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.rotation))
	copy(ids, c.rotation)
	return Stats{
		Count:    len(c.agents),
		Bound:    c.bound,
		AgentIDs: ids,
	}
}

// Shutdown stops every registered agent and empties the registry.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	agents := make([]*Agent, 0, len(c.agents))
	for _, a := range c.agents {
		agents = append(agents, a)
	}
	c.agents = make(map[string]*Agent)
	c.rotation = nil
	c.mu.Unlock()

	for _, a := range agents {
		a.Stop()
	}
}
