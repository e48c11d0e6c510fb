package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/agentboard/internal/trace"
)

// OpenAIClient runs agents against an OpenAI-compatible chat completions
// endpoint. It serves openai, groq, gemini and huggingface.
type OpenAIClient struct {
	inner         openai.Client
	model         string
	maxTokens     int64
	maxIterations int
	limiter       *rate.Limiter
	tracker       *TokenTracker
}

// OpenAIConfig contains configuration for creating an OpenAIClient.
type OpenAIConfig struct {
	Model  string
	APIKey string
	// BaseURL selects the compatible endpoint. Empty means api.openai.com.
	BaseURL string
	// MaxTokens caps each response. Zero leaves it to the provider.
	MaxTokens     int64
	MaxIterations int
	Limiter       *rate.Limiter
	HTTPClient    *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	return &OpenAIClient{
		inner:         openai.NewClient(opts...),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: maxIter,
		limiter:       cfg.Limiter,
		tracker:       NewTokenTracker(),
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *OpenAIClient) Tracker() *TokenTracker {
	return c.tracker
}

// Run executes the function-calling loop until the model answers without
// requesting a tool.
func (c *OpenAIClient) Run(ctx context.Context, req Request) (*Response, error) {
	rec := trace.NewRecorder()
	rec.Prompt(req.Prompt)
	out := &Response{}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Tools: openAITools(req.Tools),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	for out.Iterations < c.maxIterations {
		out.Iterations++

		if err := waitTurn(ctx, c.limiter); err != nil {
			return out.withTrace(rec), fmt.Errorf("rate limit wait: %w", err)
		}

		params.Messages = messages
		resp, err := c.inner.Chat.Completions.New(ctx, params)
		if err != nil {
			return out.withTrace(rec), fmt.Errorf("API call failed: %w", err)
		}

		out.TokensIn += resp.Usage.PromptTokens
		out.TokensOut += resp.Usage.CompletionTokens
		c.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.Choices) == 0 {
			return out.withTrace(rec), errors.New("API returned no choices")
		}
		msg := resp.Choices[0].Message
		if msg.Content != "" {
			rec.Text(msg.Content)
		}

		if len(msg.ToolCalls) == 0 {
			out.Text = msg.Content
			return out.withTrace(rec), nil
		}

		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			input := json.RawMessage(call.Function.Arguments)
			rec.Call(call.ID, call.Function.Name, traceInput(call.Function.Arguments))

			result := executeTool(ctx, req.Tools, call.Function.Name, input)
			rec.Result(call.ID, call.Function.Name, result.Content, result.IsError)

			messages = append(messages, openai.ToolMessage(result.Content, call.ID))
		}
	}

	return out.withTrace(rec), fmt.Errorf("max iterations (%d) reached", c.maxIterations)
}

// traceInput keeps malformed argument strings recordable as JSON.
func traceInput(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}
