package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/tools"
	"github.com/ShayCichocki/agentboard/internal/trace"
)

// scriptedServer replies to successive requests on a path suffix with the
// given bodies, repeating the last one. A body of "500" sends a server error.
type scriptedServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

func newScriptedServer(t *testing.T, suffix string, bodies ...string) *scriptedServer {
	t.Helper()
	s := &scriptedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, suffix) {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.requests = append(s.requests, string(body))
		n := len(s.requests)
		s.mu.Unlock()

		reply := bodies[len(bodies)-1]
		if n <= len(bodies) {
			reply = bodies[n-1]
		}
		if reply == "500" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"type":"api_error","message":"boom"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

func kinds(tr trace.Trace) []trace.Kind {
	out := make([]trace.Kind, len(tr))
	for i, e := range tr {
		out[i] = e.Kind
	}
	return out
}

func assertKinds(t *testing.T, tr trace.Trace, want ...trace.Kind) {
	t.Helper()
	got := kinds(tr)
	if len(got) != len(want) {
		t.Fatalf("trace kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace kinds = %v, want %v", got, want)
		}
	}
}

const anthropicToolUse = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "toolu_1", "name": "check_prime", "input": {"n": 17}}
  ],
  "stop_reason": "tool_use", "stop_sequence": null,
  "usage": {"input_tokens": 20, "output_tokens": 10}
}`

const anthropicFinal = `{
  "id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "17 is prime."}],
  "stop_reason": "end_turn", "stop_sequence": null,
  "usage": {"input_tokens": 40, "output_tokens": 5}
}`

func newTestAnthropic(t *testing.T, url string, maxIter int) *AnthropicClient {
	t.Helper()
	c, err := NewAnthropicClient(AnthropicConfig{
		Model:         "claude-sonnet-4-5",
		APIKey:        "test-key",
		BaseURL:       url,
		MaxIterations: maxIter,
	})
	if err != nil {
		t.Fatalf("NewAnthropicClient failed: %v", err)
	}
	return c
}

func TestAnthropicClient_ToolLoop(t *testing.T) {
	srv := newScriptedServer(t, "/v1/messages", anthropicToolUse, anthropicFinal)
	c := newTestAnthropic(t, srv.URL, 0)

	resp, err := c.Run(context.Background(), Request{Prompt: "Is 17 prime?", Tools: testRegistry(t)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Text != "17 is prime." {
		t.Errorf("Text = %q, want %q", resp.Text, "17 is prime.")
	}
	if resp.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", resp.Iterations)
	}
	if resp.TokensIn != 60 || resp.TokensOut != 15 || resp.Tokens() != 75 {
		t.Errorf("tokens = %d/%d, want 60/15", resp.TokensIn, resp.TokensOut)
	}
	assertKinds(t, resp.Trace,
		trace.KindPrompt, trace.KindText, trace.KindToolCall, trace.KindToolResult, trace.KindText)

	result := resp.Trace[3]
	if result.CallID != "toolu_1" || result.IsError {
		t.Errorf("unexpected tool result %+v", result)
	}
	if !strings.Contains(result.Content, `"is_prime":true`) {
		t.Errorf("tool result = %q, want is_prime true", result.Content)
	}

	reqs := srv.Requests()
	if len(reqs) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(reqs))
	}
	if !strings.Contains(reqs[0], `"check_prime"`) {
		t.Error("first request does not declare tools")
	}
	if !strings.Contains(reqs[1], `"tool_result"`) || !strings.Contains(reqs[1], `"toolu_1"`) {
		t.Error("second request does not carry the tool result")
	}

	if u := c.Tracker().Usage(); u.Calls != 2 || u.InputTokens != 60 {
		t.Errorf("tracker usage = %+v", u)
	}
}

func TestAnthropicClient_ErrorKeepsPartialTrace(t *testing.T) {
	srv := newScriptedServer(t, "/v1/messages", anthropicToolUse, "500")
	c := newTestAnthropic(t, srv.URL, 0)

	resp, err := c.Run(context.Background(), Request{Prompt: "Is 17 prime?", Tools: testRegistry(t)})
	if err == nil {
		t.Fatal("expected error")
	}
	if resp == nil {
		t.Fatal("expected partial response")
	}
	if resp.Trace.ToolCalls() != 1 {
		t.Errorf("partial trace has %d tool calls, want 1", resp.Trace.ToolCalls())
	}
	if resp.TokensIn != 20 {
		t.Errorf("TokensIn = %d, want 20", resp.TokensIn)
	}
}

func TestAnthropicClient_MaxIterations(t *testing.T) {
	srv := newScriptedServer(t, "/v1/messages", anthropicToolUse)
	c := newTestAnthropic(t, srv.URL, 3)

	_, err := c.Run(context.Background(), Request{Prompt: "loop", Tools: testRegistry(t)})
	if err == nil || !strings.Contains(err.Error(), "max iterations (3) reached") {
		t.Fatalf("err = %v, want max iterations", err)
	}
	if n := len(srv.Requests()); n != 3 {
		t.Errorf("server saw %d requests, want 3", n)
	}
}

func TestAnthropicClient_NoToolsAnswersUnknown(t *testing.T) {
	srv := newScriptedServer(t, "/v1/messages", anthropicToolUse, anthropicFinal)
	c := newTestAnthropic(t, srv.URL, 0)

	resp, err := c.Run(context.Background(), Request{Prompt: "Is 17 prime?"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Contains(srv.Requests()[0], `"tools"`) {
		t.Error("request declared tools without a registry")
	}
	if !resp.Trace[3].IsError || !strings.Contains(resp.Trace[3].Content, "Unknown tool: check_prime") {
		t.Errorf("tool result = %+v, want unknown tool error", resp.Trace[3])
	}
}

func TestNewAnthropicClient_Validation(t *testing.T) {
	if _, err := NewAnthropicClient(AnthropicConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
	if _, err := NewAnthropicClient(AnthropicConfig{Model: "claude-sonnet-4-5"}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude-sonnet-4-5-20250929", "us.anthropic.claude-sonnet-4-5-20250929-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
		{"my-custom-model", "my-custom-model"},
	}
	for _, tt := range tests {
		if got := translateModelForBedrock(anthropic.Model(tt.in)); string(got) != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const openAIToolCall = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000, "model": "gpt-4o-mini",
  "choices": [{
    "index": 0, "finish_reason": "tool_calls", "logprobs": null,
    "message": {"role": "assistant", "content": null, "refusal": null,
      "tool_calls": [{"id": "call_1", "type": "function",
        "function": {"name": "check_palindrome", "arguments": "{\"text\":\"Racecar\"}"}}]}
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

const openAIBadArgs = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000, "model": "gpt-4o-mini",
  "choices": [{
    "index": 0, "finish_reason": "tool_calls", "logprobs": null,
    "message": {"role": "assistant", "content": null, "refusal": null,
      "tool_calls": [{"id": "call_1", "type": "function",
        "function": {"name": "check_prime", "arguments": "n is seventeen"}}]}
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

const openAIFinal = `{
  "id": "chatcmpl-2", "object": "chat.completion", "created": 1700000001, "model": "gpt-4o-mini",
  "choices": [{
    "index": 0, "finish_reason": "stop", "logprobs": null,
    "message": {"role": "assistant", "content": "Yes, it is a palindrome.", "refusal": null}
  }],
  "usage": {"prompt_tokens": 30, "completion_tokens": 6, "total_tokens": 36}
}`

func newTestOpenAI(t *testing.T, url string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: url})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	return c
}

func TestOpenAIClient_ToolLoop(t *testing.T) {
	srv := newScriptedServer(t, "/chat/completions", openAIToolCall, openAIFinal)
	c := newTestOpenAI(t, srv.URL)

	resp, err := c.Run(context.Background(), Request{
		System: "You are helpful.",
		Prompt: "Is Racecar a palindrome?",
		Tools:  testRegistry(t),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Text != "Yes, it is a palindrome." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensIn != 42 || resp.TokensOut != 13 {
		t.Errorf("tokens = %d/%d, want 42/13", resp.TokensIn, resp.TokensOut)
	}
	assertKinds(t, resp.Trace, trace.KindPrompt, trace.KindToolCall, trace.KindToolResult, trace.KindText)
	if !strings.Contains(resp.Trace[2].Content, `"is_palindrome":true`) {
		t.Errorf("tool result = %q", resp.Trace[2].Content)
	}

	reqs := srv.Requests()
	if !strings.Contains(reqs[0], `"system"`) || !strings.Contains(reqs[0], `"check_palindrome"`) {
		t.Error("first request missing system message or tools")
	}
	if !strings.Contains(reqs[1], `"tool_call_id"`) || !strings.Contains(reqs[1], `"call_1"`) {
		t.Error("second request missing tool message")
	}
}

func TestOpenAIClient_MalformedArguments(t *testing.T) {
	srv := newScriptedServer(t, "/chat/completions", openAIBadArgs, openAIFinal)
	c := newTestOpenAI(t, srv.URL)

	resp, err := c.Run(context.Background(), Request{Prompt: "Is 17 prime?", Tools: testRegistry(t)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	result := resp.Trace[2]
	if !result.IsError || !strings.HasPrefix(result.Content, "Invalid parameters") {
		t.Errorf("tool result = %+v, want invalid parameters", result)
	}
	if _, err := resp.Trace.Marshal(); err != nil {
		t.Errorf("trace with malformed arguments does not marshal: %v", err)
	}
}

func TestOpenAIClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := newTestOpenAI(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp, err := c.Run(ctx, Request{Prompt: "hang"})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not abort the request")
	}
	if resp == nil || len(resp.Trace) != 1 {
		t.Errorf("expected prompt-only partial trace, got %+v", resp)
	}
}

func TestNewRunner(t *testing.T) {
	t.Setenv("AGENTBOARD_TEST_KEY", "sk-test")

	t.Run("anthropic", func(t *testing.T) {
		r, err := NewRunner(config.AgentConfig{Provider: "anthropic", Model: "claude-sonnet-4-5", APIKeyEnv: "AGENTBOARD_TEST_KEY"}, Options{})
		if err != nil {
			t.Fatalf("NewRunner failed: %v", err)
		}
		c, ok := r.(*AnthropicClient)
		if !ok {
			t.Fatalf("runner is %T, want *AnthropicClient", r)
		}
		if c.maxIterations != DefaultMaxIterations {
			t.Errorf("maxIterations = %d, want %d", c.maxIterations, DefaultMaxIterations)
		}
	})

	for _, p := range []string{"openai", "groq", "gemini", "huggingface"} {
		t.Run(p, func(t *testing.T) {
			r, err := NewRunner(config.AgentConfig{Provider: p, Model: "m", APIKeyEnv: "AGENTBOARD_TEST_KEY", RequestsPerMinute: 60}, Options{MaxIterations: 5})
			if err != nil {
				t.Fatalf("NewRunner failed: %v", err)
			}
			c, ok := r.(*OpenAIClient)
			if !ok {
				t.Fatalf("runner is %T, want *OpenAIClient", r)
			}
			if c.maxIterations != 5 || c.limiter == nil {
				t.Errorf("maxIterations = %d, limiter = %v", c.maxIterations, c.limiter)
			}
		})
	}

	t.Run("missing key", func(t *testing.T) {
		_, err := NewRunner(config.AgentConfig{Provider: "groq", Model: "m", APIKeyEnv: "AGENTBOARD_TEST_UNSET"}, Options{})
		if !errors.Is(err, config.ErrNoAPIKey) {
			t.Errorf("err = %v, want ErrNoAPIKey", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := NewRunner(config.AgentConfig{Provider: "azure", Model: "m"}, Options{}); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}

func TestDefaultBaseURL(t *testing.T) {
	if defaultBaseURL("groq") != GroqBaseURL {
		t.Error("groq base URL")
	}
	if defaultBaseURL("openai") != "" {
		t.Error("openai should use the SDK default")
	}
}

func TestNewLimiter(t *testing.T) {
	if newLimiter(0) != nil {
		t.Error("expected nil limiter for zero rpm")
	}
	l := newLimiter(120)
	if l == nil || float64(l.Limit()) != 2 {
		t.Errorf("limiter = %v, want 2 per second", l)
	}
	if err := waitTurn(context.Background(), nil); err != nil {
		t.Errorf("waitTurn(nil) = %v", err)
	}
}

func TestTokenTracker_Concurrent(t *testing.T) {
	tr := NewTokenTracker()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(3, 2)
		}()
	}
	wg.Wait()
	u := tr.Usage()
	if u.InputTokens != 30 || u.OutputTokens != 20 || u.Calls != 10 {
		t.Errorf("usage = %+v", u)
	}
}

func TestUsageOf(t *testing.T) {
	t.Setenv("AGENTBOARD_TEST_KEY", "sk-test")
	r, err := NewRunner(config.AgentConfig{Provider: "groq", Model: "m", APIKeyEnv: "AGENTBOARD_TEST_KEY"}, Options{})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	before, ok := UsageOf(r)
	if !ok {
		t.Fatalf("%T should report usage", r)
	}
	r.(*OpenAIClient).Tracker().Add(40, 8)
	after, _ := UsageOf(r)

	delta := after.Sub(before)
	if delta.InputTokens != 40 || delta.OutputTokens != 8 || delta.Calls != 1 || delta.Total() != 48 {
		t.Errorf("delta = %+v", delta)
	}

	plain := RunnerFunc(func(ctx context.Context, req Request) (*Response, error) { return &Response{}, nil })
	if _, ok := UsageOf(plain); ok {
		t.Error("RunnerFunc should not report usage")
	}
}

func TestRunnerFunc(t *testing.T) {
	var r Runner = RunnerFunc(func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Text: strings.ToUpper(req.Prompt)}, nil
	})
	resp, err := r.Run(context.Background(), Request{Prompt: "hi"})
	if err != nil || resp.Text != "HI" {
		t.Errorf("Run = %v, %v", resp, err)
	}
}
