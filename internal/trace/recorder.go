package trace

import (
	"encoding/json"
	"sync"
	"time"
)

// Recorder builds a Trace while an agent runs and tracks call depth so
// adapters never compute it by hand.
type Recorder struct {
	mu    sync.Mutex
	now   func() time.Time
	trace Trace
	open  []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) add(e Entry) {
	e.Timestamp = r.now()
	r.trace = append(r.trace, e)
}

// Prompt records the user prompt.
func (r *Recorder) Prompt(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(Entry{Kind: KindPrompt, Depth: len(r.open), Content: text})
}

// Text records model output at the current depth.
func (r *Recorder) Text(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(Entry{Kind: KindText, Depth: len(r.open), Content: text})
}

// Call opens a tool call frame.
func (r *Recorder) Call(id, tool string, input json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(Entry{Kind: KindToolCall, Depth: len(r.open), CallID: id, Tool: tool, Input: input})
	r.open = append(r.open, id)
}

// Result closes the frame opened by Call with the same id. Results for
// unknown ids are recorded at the current depth.
func (r *Recorder) Result(id, tool, content string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i] == id {
			r.open = r.open[:i]
			break
		}
	}
	r.add(Entry{Kind: KindToolResult, Depth: len(r.open), CallID: id, Tool: tool, Content: content, IsError: isError})
}

// Error records a failure at the current depth.
func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(Entry{Kind: KindError, Depth: len(r.open), Content: msg, IsError: true})
}

// Trace returns a copy of the entries recorded so far.
func (r *Recorder) Trace() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Trace, len(r.trace))
	copy(out, r.trace)
	return out
}
