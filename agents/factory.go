// Package agents provides ready-made agent roles built on the core agent
// package. Roles register themselves with the factory in init, so importing
// this package is enough to make "echo", "retriever" and "responder"
// available to configuration-driven setups.
package agents

import (
	"fmt"
	"io"
	"sync"

	"github.com/ringlet-dev/ringlet/pkg/embeddings"
	"github.com/ringlet-dev/ringlet/pkg/llm"
	"github.com/ringlet-dev/ringlet/pkg/vectorstore"

	"github.com/ringlet-dev/ringlet/agent"
)

// Def describes one agent instance in configuration.
type Def struct {
	ID           string         `yaml:"id"`
	Role         string         `yaml:"role"`
	Capabilities []string       `yaml:"capabilities,omitempty"`
	MaxQueueSize int            `yaml:"max_queue_size,omitempty"`
	Extra        map[string]any `yaml:",inline"`
}

// GetString returns a string value from Extra, or def when absent.
func (d *Def) GetString(key, def string) string {
	if v, ok := d.Extra[key].(string); ok {
		return v
	}
	return def
}

// Deps carries the shared services a role factory may wire into an agent.
// Fields a role does not need may be nil; factories validate their own.
type Deps struct {
	Output    io.Writer
	Embedder  embeddings.Service
	Index     vectorstore.Store
	Completer llm.Completer
}

// FactoryFunc builds a configured agent for one role.
type FactoryFunc func(Def, Deps) (*agent.Agent, error)

// Registry maps role names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FactoryFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FactoryFunc)}
}

// Register adds a factory for a role, replacing any previous one.
func (r *Registry) Register(role string, factory FactoryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[role] = factory
}

// GetFactory looks up the factory for a role.
func (r *Registry) GetFactory(role string) (FactoryFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[role]
	return f, ok
}

var defaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(role string, factory FactoryFunc) {
	defaultRegistry.Register(role, factory)
}

// Create builds an agent from the default registry.
func Create(def Def, deps Deps) (*agent.Agent, error) {
	return CreateWithRegistry(def, deps, defaultRegistry)
}

// CreateWithRegistry builds an agent from a specific registry
// (useful for testing).
func CreateWithRegistry(def Def, deps Deps, registry *Registry) (*agent.Agent, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("agent definition requires an id")
	}
	factory, ok := registry.GetFactory(def.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role: %s", def.Role)
	}
	return factory(def, deps)
}

// baseOptions translates the common Def fields into agent options.
func baseOptions(def Def, deps Deps) []agent.Option {
	var opts []agent.Option
	if deps.Output != nil {
		opts = append(opts, agent.WithOutput(deps.Output))
	}
	if def.MaxQueueSize > 0 {
		opts = append(opts, agent.WithMaxQueueSize(def.MaxQueueSize))
	}
	return opts
}
