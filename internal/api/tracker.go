package api

import "sync"

// Usage is cumulative token consumption for one client.
type Usage struct {
	InputTokens  int64 `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64 `json:"output_tokens" yaml:"output_tokens"`
	Calls        int   `json:"calls" yaml:"calls"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Sub returns the usage accumulated since the earlier snapshot.
func (u Usage) Sub(earlier Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens - earlier.InputTokens,
		OutputTokens: u.OutputTokens - earlier.OutputTokens,
		Calls:        u.Calls - earlier.Calls,
	}
}

// Tracked is implemented by runners that count their token usage.
type Tracked interface {
	Tracker() *TokenTracker
}

// UsageOf returns r's cumulative usage. ok is false when r does not track
// usage.
func UsageOf(r Runner) (u Usage, ok bool) {
	t, ok := r.(Tracked)
	if !ok || t.Tracker() == nil {
		return Usage{}, false
	}
	return t.Tracker().Usage(), true
}

// TokenTracker accumulates usage across every Run of a client. It is
// shared by concurrent runs.
type TokenTracker struct {
	mu    sync.Mutex
	usage Usage
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.InputTokens += input
	t.usage.OutputTokens += output
	t.usage.Calls++
}

// Usage returns a snapshot of the totals.
func (t *TokenTracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}
