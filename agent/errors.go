package agent

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when a message targets an id that is not in
// the coordinator's registry. Routing failures are non-fatal.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentStopped is returned when a message is delivered to an agent whose
// task has already terminated.
var ErrAgentStopped = errors.New("agent stopped")

// ErrAlreadyStarted is returned by Start when the agent has left the
// Created state. Start is callable at most once.
var ErrAlreadyStarted = errors.New("agent already started")

// CapacityError is returned by Coordinator.Register when the registry is
// already at its bound. It is the only hard, caller-visible failure in the
// core; everything else is recovered locally.
type CapacityError struct {
	Bound int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum agents (%d) reached", e.Bound)
}
