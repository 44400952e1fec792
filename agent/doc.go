// Package agent provides the cooperative multi-agent core of Ringlet.
//
// An Agent is a lightweight, independently-addressable task with a bounded
// inbound queue. Agents communicate through a line-delimited JSON protocol
// and are multiplexed onto a single logical thread of control: each agent
// runs until it drains its backlog, then hands control back to whoever
// resumed it. Transfers of control are explicit hand-offs, never preemptive
// interrupts, so at most one agent executes at any instant.
//
// # Basic Usage
//
// Create an agent, extend its dispatch table, and register it with a
// Coordinator:
//
//	a := agent.New("echo-0", []string{"echo"})
//	a.On("agent.echo", func(a *agent.Agent, env *agent.Envelope) error {
//	    return a.Emit(agent.NewEnvelope("agent.echo_response", env.Data))
//	})
//
//	coord := agent.NewCoordinator(100)
//	if err := coord.Register(a); err != nil {
//	    log.Fatal(err)
//	}
//
// Deliver messages by id and drive progress with scheduling quanta:
//
//	coord.Route("echo-0", agent.NewEnvelope("agent.ping", nil))
//	coord.Schedule()
//
// # Message Format
//
// Envelopes are exchanged as one JSON object per line:
//
//	{"type":"agent.ping","data":{}}
//
// Base kinds (ping, stop, metrics) are seeded into every agent's dispatch
// table; variants add or override kinds with On.
//
// # Threading
//
// Agents are normally driven by a single caller. Receive, Resume, Stop and
// On are nevertheless safe to call from multiple goroutines: hand-offs are
// serialized, and a Stop that races an in-flight resume still terminates
// the task. No true parallelism is introduced either way; a resume blocks
// the caller until the agent yields again.
package agent
