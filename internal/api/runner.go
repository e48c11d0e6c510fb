// Package api adapts model provider SDKs to a single tool-calling runner.
package api

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/tools"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Request is one prompt for a runner. Tools may be nil for a plain completion.
type Request struct {
	System string
	Prompt string
	Tools  *tools.Registry
}

// Response is the outcome of a runner call.
type Response struct {
	Text       string
	Trace      trace.Trace
	TokensIn   int64
	TokensOut  int64
	Iterations int
}

// Tokens returns input plus output tokens.
func (r *Response) Tokens() int64 {
	return r.TokensIn + r.TokensOut
}

// Runner sends a prompt to a model, resolves any tool calls through the
// request's registry, and returns the final text.
//
// On error, implementations still return a non-nil Response carrying the
// partial trace recorded before the failure.
type Runner interface {
	Run(ctx context.Context, req Request) (*Response, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (*Response, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Options tune runners built by NewRunner.
type Options struct {
	// MaxIterations caps model round trips per Run. Zero means the default.
	MaxIterations int
	// HTTPClient replaces the SDK's default client.
	HTTPClient *http.Client
}

// DefaultMaxIterations is used when Options.MaxIterations is zero.
const DefaultMaxIterations = config.DefaultMaxIterations

// Default OpenAI-compatible endpoints per provider.
const (
	GroqBaseURL        = "https://api.groq.com/openai/v1"
	GeminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/openai/"
	HuggingFaceBaseURL = "https://router.huggingface.co/v1"
)

// NewRunner builds the adapter for an agent's provider.
func NewRunner(agent config.AgentConfig, opts Options) (Runner, error) {
	limiter := newLimiter(agent.RequestsPerMinute)
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	provider := models.Provider(agent.Provider)
	if provider == models.ProviderAnthropic {
		var key string
		if !agent.UseBedrock {
			k, err := config.GetAPIKey(agent)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", agent.Ref(), err)
			}
			key = k
		}
		return NewAnthropicClient(AnthropicConfig{
			Model:         agent.Model,
			APIKey:        key,
			BaseURL:       agent.BaseURL,
			MaxTokens:     agent.MaxTokens,
			UseAWSBedrock: agent.UseBedrock,
			AWSRegion:     agent.AWSRegion,
			AWSProfile:    agent.AWSProfile,
			MaxIterations: maxIter,
			Limiter:       limiter,
			HTTPClient:    opts.HTTPClient,
		})
	}

	baseURL := agent.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(provider)
	}
	if !provider.Valid() {
		return nil, fmt.Errorf("unknown provider %q", agent.Provider)
	}
	key, err := config.GetAPIKey(agent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", agent.Ref(), err)
	}
	return NewOpenAIClient(OpenAIConfig{
		Model:         agent.Model,
		APIKey:        key,
		BaseURL:       baseURL,
		MaxTokens:     agent.MaxTokens,
		MaxIterations: maxIter,
		Limiter:       limiter,
		HTTPClient:    opts.HTTPClient,
	})
}

func defaultBaseURL(p models.Provider) string {
	switch p {
	case models.ProviderGroq:
		return GroqBaseURL
	case models.ProviderGemini:
		return GeminiBaseURL
	case models.ProviderHuggingFace:
		return HuggingFaceBaseURL
	default:
		return ""
	}
}

// newLimiter returns nil when rpm is not positive.
func newLimiter(rpm float64) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rpm/60), 1)
}

func waitTurn(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
