package agent

import (
	"encoding/json"
	"fmt"
	"io"
)

// Message kinds understood by the base dispatch table, plus the kinds agents
// emit in response. Variants add their own kinds (e.g. "agent.echo").
const (
	KindRegister        = "agent.register"
	KindPing            = "agent.ping"
	KindPong            = "agent.pong"
	KindStop            = "agent.stop"
	KindMetrics         = "agent.metrics"
	KindMetricsResponse = "agent.metrics_response"
)

// Envelope is the wire format for agent communication: one JSON object per
// line with a kind and an open payload. No further structure is imposed on
// the payload.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// NewEnvelope creates an envelope of the given kind. A nil data map is
// replaced with an empty one so the wire form is always {"type":...,"data":{}}.
func NewEnvelope(kind string, data map[string]any) *Envelope {
	if data == nil {
		data = make(map[string]any)
	}
	return &Envelope{Type: kind, Data: data}
}

// Encode serializes the envelope as a single newline-terminated JSON object.
func (e *Envelope) Encode(w io.Writer) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// DecodeEnvelope parses one protocol line into an envelope.
func DecodeEnvelope(line []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	if env.Data == nil {
		env.Data = make(map[string]any)
	}
	return &env, nil
}

// String returns a compact representation for logs.
func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope{Type:%s, Keys:%d}", e.Type, len(e.Data))
}
