package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T) *Redis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func appendN(t *testing.T, s Store, agentID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		e := NewEntry(agentID, "agent.ping", map[string]any{"seq": i})
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
}

func TestMemoryAppendAndRecent(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()

	appendN(t, s, "echo-1", 5)

	got, err := s.Recent(ctx, "echo-1", 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Newest first: seq 4, 3, 2.
	for i, want := range []int{4, 3, 2} {
		if seq := got[i].Data["seq"].(int); seq != want {
			t.Errorf("entry %d: expected seq %d, got %d", i, want, seq)
		}
	}
}

func TestMemoryTrimsOldest(t *testing.T) {
	s := NewMemory(3)
	ctx := context.Background()

	appendN(t, s, "echo-1", 5)

	got, err := s.Recent(ctx, "echo-1", 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", len(got))
	}
	if seq := got[len(got)-1].Data["seq"].(int); seq != 2 {
		t.Errorf("oldest kept entry should be seq 2, got %d", seq)
	}
}

func TestMemoryUnknownAgent(t *testing.T) {
	s := NewMemory(0)

	got, err := s.Recent(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestRedisAppendAndRecent(t *testing.T) {
	s := setupMiniredis(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		e := Entry{
			ID:      fmt.Sprintf("e-%d", i),
			AgentID: "echo-1",
			Kind:    "agent.ping",
			At:      time.Now().UTC(),
		}
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.Recent(ctx, "echo-1", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "e-3" || got[1].ID != "e-2" {
		t.Errorf("expected newest first [e-3 e-2], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestRedisTrimsOldest(t *testing.T) {
	s := setupMiniredis(t)
	s.maxEntries = 3
	ctx := context.Background()

	appendN(t, s, "echo-1", 5)

	got, err := s.Recent(ctx, "echo-1", 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", len(got))
	}
}

func TestRedisSeparatesAgents(t *testing.T) {
	s := setupMiniredis(t)
	ctx := context.Background()

	appendN(t, s, "echo-1", 2)
	appendN(t, s, "echo-2", 1)

	got, err := s.Recent(ctx, "echo-2", 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 entry for echo-2, got %d", len(got))
	}
}

func TestRedisClosed(t *testing.T) {
	s := setupMiniredis(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be nil, got %v", err)
	}

	if err := s.Append(context.Background(), NewEntry("echo-1", "agent.ping", nil)); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.Recent(context.Background(), "echo-1", 1); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
