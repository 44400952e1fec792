package agent

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// DefaultMaxQueueSize bounds an agent's inbound queue unless overridden
// with WithMaxQueueSize.
const DefaultMaxQueueSize = 10

// State is an agent's lifecycle phase. Running covers both "executing" and
// "suspended awaiting resume"; Stopped is terminal.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// HandlerFunc processes one message kind. A returned error is counted in
// the agent's error metrics and swallowed at the loop boundary; it never
// terminates the agent.
type HandlerFunc func(a *Agent, env *Envelope) error

// MetricsSnapshot is a point-in-time view of an agent's counters.
type MetricsSnapshot struct {
	Received      uint64  `json:"received"`
	Sent          uint64  `json:"sent"`
	Errors        uint64  `json:"errors"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	QueueSize     int     `json:"queue_size"`
}

// Agent is a cooperative task owning an identity, a capability declaration,
// a bounded inbound queue, and counters. Its loop drains the queue once per
// resume and then suspends until the next hand-off.
//
// The task runs on its own goroutine, but hand-off channels guarantee
// at-most-one-active semantics: a resume blocks the caller until the agent
// yields back, so the resumer and the task never execute simultaneously.
type Agent struct {
	id           string
	capabilities []string
	maxQueueSize int
	handlers     map[string]HandlerFunc

	out   io.Writer
	outMu sync.Mutex

	mu        sync.Mutex
	state     State
	running   bool
	suspended bool
	queue     []*Envelope

	received       uint64
	sent           uint64
	errors         uint64
	startedAt      time.Time
	lastReceivedAt time.Time

	// resumeMu serializes hand-offs so at most one resumer is in flight.
	resumeMu sync.Mutex
	resume   chan *Envelope
	yield    chan struct{}
	done     chan struct{}
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithOutput sets the sink outgoing replies are written to. Defaults to
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Agent) { a.out = w }
}

// WithMaxQueueSize bounds the inbound queue. Messages arriving at a full
// queue bypass it and are handed to the task directly.
func WithMaxQueueSize(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxQueueSize = n
		}
	}
}

// WithHandler registers a handler for a message kind, overriding the base
// dispatch table if the kind collides.
func WithHandler(kind string, fn HandlerFunc) Option {
	return func(a *Agent) { a.handlers[kind] = fn }
}

// New creates an agent with the given id and advertised capabilities. The
// capability list is informational to the core; dispatch is driven by the
// handler table, which is seeded with the base kinds ping, stop and metrics.
func New(id string, capabilities []string, opts ...Option) *Agent {
	a := &Agent{
		id:           id,
		capabilities: capabilities,
		maxQueueSize: DefaultMaxQueueSize,
		handlers:     make(map[string]HandlerFunc),
		out:          os.Stdout,
		resume:       make(chan *Envelope),
		yield:        make(chan struct{}),
		done:         make(chan struct{}),
	}
	a.handlers[KindPing] = handlePing
	a.handlers[KindStop] = handleStop
	a.handlers[KindMetrics] = handleMetrics
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.id }

// Capabilities returns the capability declaration advertised at registration.
func (a *Agent) Capabilities() []string {
	out := make([]string, len(a.capabilities))
	copy(out, a.capabilities)
	return out
}

// State returns the agent's lifecycle phase.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// QueueLen returns the current inbound queue depth.
func (a *Agent) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Done is closed when the agent's task has terminated.
func (a *Agent) Done() <-chan struct{} { return a.done }

// On registers a handler for a message kind. Registering an existing kind
// overrides it, which is how variants specialize the base dispatch.
func (a *Agent) On(kind string, fn HandlerFunc) {
	a.mu.Lock()
	a.handlers[kind] = fn
	a.mu.Unlock()
}

// Metrics returns a snapshot of the agent's counters, derived uptime and
// current queue depth.
func (a *Agent) Metrics() MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := MetricsSnapshot{
		Received:  a.received,
		Sent:      a.sent,
		Errors:    a.errors,
		QueueSize: len(a.queue),
	}
	if !a.startedAt.IsZero() {
		snap.UptimeSeconds = time.Since(a.startedAt).Seconds()
	}
	return snap
}

// Start launches the agent's task. It emits an agent.register event, runs
// the loop until its first suspension point, and returns with the task
// suspended awaiting its first resume. Callable at most once.
func (a *Agent) Start() error {
	a.mu.Lock()
	if a.state != StateCreated {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.state = StateRunning
	a.running = true
	a.startedAt = time.Now()
	a.mu.Unlock()

	go a.run()

	// Run until the task yields for the first time.
	select {
	case <-a.yield:
	case <-a.done:
	}
	return nil
}

// Stop clears the running flag and, if the task is suspended, resumes it
// one final time with a nil sentinel so the loop can observe the flag and
// exit. Idempotent: a second call is a no-op. Once stopped, no further
// resumes are accepted.
func (a *Agent) Stop() {
	a.mu.Lock()
	switch a.state {
	case StateStopped:
		a.mu.Unlock()
		return
	case StateCreated:
		a.state = StateStopped
		a.mu.Unlock()
		return
	}
	a.running = false
	a.state = StateStopped
	suspended := a.suspended
	a.mu.Unlock()

	// When Stop arrives from inside a handler the task is already awake
	// and will observe the flag after dispatch returns.
	if suspended {
		a.handoff(nil)
	}
}

// Receive is the delivery entry point. With spare queue capacity the
// message is appended and the task resumed with an empty hand-off; at
// capacity the message bypasses the queue and rides the hand-off itself.
// The caller is never blocked past one quantum and no message is dropped,
// at the cost of possible reordering under sustained overload.
func (a *Agent) Receive(env *Envelope) error {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return fmt.Errorf("agent %s: %w", a.id, ErrAgentStopped)
	}
	if len(a.queue) < a.maxQueueSize {
		a.queue = append(a.queue, env)
		a.mu.Unlock()
		a.handoff(nil)
		return nil
	}
	a.mu.Unlock()

	// Overflow bypass: never block, never drop.
	a.handoff(env)
	return nil
}

// Resume grants the agent one quantum with an empty hand-off. The
// coordinator uses this to let an agent drain any backlog.
func (a *Agent) Resume() {
	a.mu.Lock()
	running := a.state == StateRunning
	a.mu.Unlock()
	if running {
		a.handoff(nil)
	}
}

// handoff transfers control to the task and blocks until it yields back or
// terminates. resumeMu keeps hand-offs strictly sequential.
func (a *Agent) handoff(env *Envelope) {
	a.resumeMu.Lock()
	defer a.resumeMu.Unlock()

	select {
	case <-a.done:
		return
	default:
	}

	select {
	case a.resume <- env:
	case <-a.done:
		return
	}
	select {
	case <-a.yield:
	case <-a.done:
	}
}

// run is the task body. Once per resume it drains the whole queue in
// arrival order, handles any message carried by the hand-off itself, and
// suspends. The suspension is a true block on the hand-off channel; no
// timed sleep is needed because progress only ever comes from a resume.
func (a *Agent) run() {
	defer close(a.done)

	a.Emit(NewEnvelope(KindRegister, map[string]any{
		"id":           a.id,
		"capabilities": a.capabilities,
	}))

	for {
		a.drain()

		// Suspension point: the running re-check and the suspended transition
		// are a single atomic step, so a concurrent Stop either observes the
		// task suspended and hands it the nil sentinel, or is observed here.
		a.mu.Lock()
		if !a.running {
			a.mu.Unlock()
			return
		}
		a.suspended = true
		a.mu.Unlock()

		a.yield <- struct{}{}
		env := <-a.resume
		a.setSuspended(false)

		if env != nil {
			a.dispatch(env)
		}
		if !a.isRunning() {
			return
		}
	}
}

// drain handles every queued message in FIFO order.
func (a *Agent) drain() {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.mu.Unlock()
			return
		}
		env := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.dispatch(env)
	}
}

// dispatch looks the message kind up in the handler table. Unknown kinds
// are a no-op. Handler errors and panics are counted and swallowed so one
// misbehaving handler cannot take the agent down.
func (a *Agent) dispatch(env *Envelope) {
	a.mu.Lock()
	a.received++
	a.lastReceivedAt = time.Now()
	fn, ok := a.handlers[env.Type]
	a.mu.Unlock()

	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			a.countError()
			log.Printf("Agent %s: handler panic on %s: %v", a.id, env.Type, r)
		}
	}()

	if err := fn(a, env); err != nil {
		a.countError()
		log.Printf("Agent %s: handler error on %s: %v", a.id, env.Type, err)
	}
}

// Emit serializes a reply as one line to the agent's output sink.
// Serialization failures are counted as errors and do not abort the loop.
func (a *Agent) Emit(env *Envelope) error {
	a.outMu.Lock()
	err := env.Encode(a.out)
	a.outMu.Unlock()

	a.mu.Lock()
	if err != nil {
		a.errors++
	} else {
		a.sent++
	}
	a.mu.Unlock()

	if err != nil {
		log.Printf("Agent %s: emit %s: %v", a.id, env.Type, err)
	}
	return err
}

func (a *Agent) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Agent) setSuspended(v bool) {
	a.mu.Lock()
	a.suspended = v
	a.mu.Unlock()
}

func (a *Agent) countError() {
	a.mu.Lock()
	a.errors++
	a.mu.Unlock()
}

// Base dispatch table.

func handlePing(a *Agent, _ *Envelope) error {
	return a.Emit(NewEnvelope(KindPong, map[string]any{"agent_id": a.id}))
}

func handleStop(a *Agent, _ *Envelope) error {
	a.Stop()
	return nil
}

func handleMetrics(a *Agent, _ *Envelope) error {
	snap := a.Metrics()
	return a.Emit(NewEnvelope(KindMetricsResponse, map[string]any{
		"agent_id":       a.id,
		"received":       snap.Received,
		"sent":           snap.Sent,
		"errors":         snap.Errors,
		"uptime_seconds": snap.UptimeSeconds,
		"queue_size":     snap.QueueSize,
	}))
}
