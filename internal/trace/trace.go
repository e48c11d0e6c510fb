// Package trace defines the step record an agent adapter emits while running
// and the tool-call tree derived from it.
package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the type of a trace entry.
type Kind string

const (
	KindPrompt     Kind = "prompt"
	KindText       Kind = "text"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindError      Kind = "error"
)

// Entry is one step of an agent run.
//
// Depth is the call-stack depth at which the step happened. Top-level
// conversation steps are depth 0; a tool_call at depth d is answered by a
// tool_result with the same CallID, and any call made while it is open is
// emitted at depth d+1.
type Entry struct {
	Kind      Kind            `json:"kind"`
	Depth     int             `json:"depth"`
	CallID    string          `json:"call_id,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Trace is the ordered record of an agent run.
type Trace []Entry

// Marshal encodes the trace as a JSON array. A nil trace encodes as "[]".
func (t Trace) Marshal() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Entry(t))
}

// Parse decodes a trace produced by Marshal. Empty input is an empty trace.
func Parse(data []byte) (Trace, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Trace{}, nil
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	return t, nil
}

// ToolCalls returns the number of tool_call entries.
func (t Trace) ToolCalls() int {
	n := 0
	for _, e := range t {
		if e.Kind == KindToolCall {
			n++
		}
	}
	return n
}

// FinalText returns the depth-0 text emitted after the last tool result.
func (t Trace) FinalText() string {
	start := 0
	for i, e := range t {
		if e.Kind == KindToolResult && e.Depth == 0 {
			start = i + 1
		}
	}
	var b strings.Builder
	for _, e := range t[start:] {
		if e.Kind == KindText && e.Depth == 0 {
			b.WriteString(e.Content)
		}
	}
	return b.String()
}

// Errors returns the content of every error entry.
func (t Trace) Errors() []string {
	var out []string
	for _, e := range t {
		if e.Kind == KindError {
			out = append(out, e.Content)
		}
	}
	return out
}

// WithError returns a copy of t with a depth-0 error entry appended.
func (t Trace) WithError(msg string, at time.Time) Trace {
	out := make(Trace, len(t), len(t)+1)
	copy(out, t)
	return append(out, Entry{Kind: KindError, Content: msg, IsError: true, Timestamp: at})
}
