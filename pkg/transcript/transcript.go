// Package transcript records the envelopes routed through a coordinator so
// operators can inspect recent traffic per agent. It is a message log, not
// agent state: agents themselves are never persisted or restored.
package transcript

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries bounds the per-agent history kept by a store.
const DefaultMaxEntries = 1000

// Entry is one recorded envelope.
type Entry struct {
	ID      string         `json:"id"`
	AgentID string         `json:"agent_id"`
	Kind    string         `json:"kind"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// NewEntry creates an entry with a fresh id and timestamp.
func NewEntry(agentID, kind string, data map[string]any) Entry {
	return Entry{
		ID:      uuid.NewString(),
		AgentID: agentID,
		Kind:    kind,
		Data:    data,
		At:      time.Now().UTC(),
	}
}

// Store persists transcript entries.
type Store interface {
	// Append records one entry.
	Append(ctx context.Context, e Entry) error

	// Recent returns up to limit entries for an agent, newest first.
	Recent(ctx context.Context, agentID string, limit int) ([]Entry, error)

	// Close releases store resources.
	Close() error
}
