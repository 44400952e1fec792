package agents

import (
	"github.com/ringlet-dev/ringlet/agent"
)

// Message kinds handled by the echo role.
const (
	KindEcho         = "agent.echo"
	KindEchoResponse = "agent.echo_response"
)

func init() {
	Register("echo", NewEcho)
}

// NewEcho builds an echo agent. It answers every agent.echo message with an
// agent.echo_response carrying the request data back unchanged.
func NewEcho(def Def, deps Deps) (*agent.Agent, error) {
	caps := def.Capabilities
	if len(caps) == 0 {
		caps = []string{"echo"}
	}

	a := agent.New(def.ID, caps, baseOptions(def, deps)...)
	a.On(KindEcho, handleEcho)
	return a, nil
}

func handleEcho(a *agent.Agent, env *agent.Envelope) error {
	return a.Emit(agent.NewEnvelope(KindEchoResponse, env.Data))
}
