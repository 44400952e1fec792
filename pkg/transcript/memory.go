package transcript

import (
	"context"
	"sync"
)

// Memory is an in-process transcript store. It keeps at most maxEntries
// entries per agent and discards the oldest when full.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string][]Entry
	maxEntries int
}

// NewMemory creates a memory store. maxEntries <= 0 selects
// DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string][]Entry),
		maxEntries: maxEntries,
	}
}

// Append records one entry.
func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.entries[e.AgentID], e)
	if len(list) > m.maxEntries {
		list = list[len(list)-m.maxEntries:]
	}
	m.entries[e.AgentID] = list
	return nil
}

// Recent returns up to limit entries for an agent, newest first.
func (m *Memory) Recent(_ context.Context, agentID string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[agentID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	out := make([]Entry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }
