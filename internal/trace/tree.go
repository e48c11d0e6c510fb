package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ToolCallRecord is one node of the tool-call hierarchy derived from a trace.
type ToolCallRecord struct {
	ID        string            `json:"id"`
	Tool      string            `json:"tool"`
	Input     json.RawMessage   `json:"input,omitempty"`
	Output    string            `json:"output"`
	IsError   bool              `json:"is_error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	ParentID  string            `json:"parent_id,omitempty"`
	Children  []*ToolCallRecord `json:"children,omitempty"`
}

// BuildTree derives the tool-call hierarchy from t. The parent of a call at
// depth d is the nearest preceding call at depth d-1 that was still open.
// Calls at depth 0, or whose parent cannot be found, become roots. A result
// fills in the output of the open call with the same id; results with no
// matching call are ignored.
func BuildTree(t Trace) []*ToolCallRecord {
	var roots []*ToolCallRecord
	var stack []*ToolCallRecord
	byID := make(map[string]*ToolCallRecord)

	for _, e := range t {
		switch e.Kind {
		case KindToolCall:
			if e.Depth < len(stack) {
				stack = stack[:max(e.Depth, 0)]
			}
			rec := &ToolCallRecord{
				ID:        e.CallID,
				Tool:      e.Tool,
				Input:     e.Input,
				Timestamp: e.Timestamp,
			}
			if e.Depth > 0 && len(stack) == e.Depth {
				parent := stack[len(stack)-1]
				rec.ParentID = parent.ID
				parent.Children = append(parent.Children, rec)
			} else {
				roots = append(roots, rec)
				stack = stack[:0]
			}
			stack = append(stack, rec)
			if e.CallID != "" {
				byID[e.CallID] = rec
			}

		case KindToolResult:
			rec, ok := byID[e.CallID]
			if !ok {
				continue
			}
			rec.Output = e.Content
			rec.IsError = e.IsError
			delete(byID, e.CallID)
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == rec {
					stack = stack[:i]
					break
				}
			}
		}
	}
	return roots
}

// Walk visits records depth-first, passing each record's depth.
func Walk(roots []*ToolCallRecord, fn func(rec *ToolCallRecord, depth int)) {
	var visit func(list []*ToolCallRecord, depth int)
	visit = func(list []*ToolCallRecord, depth int) {
		for _, rec := range list {
			fn(rec, depth)
			visit(rec.Children, depth+1)
		}
	}
	visit(roots, 0)
}

// MarshalYAML writes Input as compact JSON text rather than a byte list.
func (r *ToolCallRecord) MarshalYAML() (any, error) {
	return struct {
		ID        string            `yaml:"id"`
		Tool      string            `yaml:"tool"`
		Input     string            `yaml:"input,omitempty"`
		Output    string            `yaml:"output"`
		IsError   bool              `yaml:"is_error,omitempty"`
		Timestamp time.Time         `yaml:"timestamp"`
		ParentID  string            `yaml:"parent_id,omitempty"`
		Children  []*ToolCallRecord `yaml:"children,omitempty"`
	}{
		ID:        r.ID,
		Tool:      r.Tool,
		Input:     compactInput(r.Input),
		Output:    r.Output,
		IsError:   r.IsError,
		Timestamp: r.Timestamp,
		ParentID:  r.ParentID,
		Children:  r.Children,
	}, nil
}

// Render lists the hierarchy as indented text, one call per line followed
// by its result:
//
//	- check_prime {"n":17}
//	  => {"is_prime":true}
//
// Nested calls are indented two spaces per level. An empty hierarchy
// renders as "".
func Render(roots []*ToolCallRecord) string {
	var b strings.Builder
	Walk(roots, func(rec *ToolCallRecord, depth int) {
		indent := strings.Repeat("  ", depth)
		b.WriteString(indent + "- " + rec.Tool)
		if in := compactInput(rec.Input); in != "" {
			b.WriteString(" " + in)
		}
		b.WriteByte('\n')

		arrow := "=>"
		if rec.IsError {
			arrow = "=> error:"
		}
		out := strings.TrimSpace(rec.Output)
		if out == "" {
			out = "(no result)"
		}
		b.WriteString(indent + "  " + arrow + " " + strings.ReplaceAll(out, "\n", " ") + "\n")
	})
	return strings.TrimRight(b.String(), "\n")
}

func compactInput(in json.RawMessage) string {
	if len(in) == 0 || string(in) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, in); err != nil {
		return string(in)
	}
	if buf.String() == "{}" {
		return ""
	}
	return buf.String()
}
