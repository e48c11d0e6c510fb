package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/time/rate"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicClient runs agents against the Anthropic Messages API, directly
// or through AWS Bedrock.
type AnthropicClient struct {
	inner         anthropic.Client
	model         anthropic.Model
	maxTokens     int64
	maxIterations int
	limiter       *rate.Limiter
	tracker       *TokenTracker
}

// AnthropicConfig contains configuration for creating an AnthropicClient.
type AnthropicConfig struct {
	Model string
	// APIKey is required unless UseAWSBedrock is set.
	APIKey  string
	BaseURL string
	// MaxTokens caps each response. Zero means 4096.
	MaxTokens     int64
	MaxIterations int
	Limiter       *rate.Limiter
	HTTPClient    *http.Client

	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion  string
	AWSProfile string
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("anthropic: model is required")
	}

	// The executor owns retry policy; the SDK must not retry behind it.
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseAWSBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic: API key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := anthropic.Model(cfg.Model)
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	return &AnthropicClient{
		inner:         anthropic.NewClient(opts...),
		model:         model,
		maxTokens:     maxTokens,
		maxIterations: maxIter,
		limiter:       cfg.Limiter,
		tracker:       NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts Anthropic model names to Bedrock
// cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:         "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.Model("claude-sonnet-4-5-20250929"): "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.Model("claude-haiku-4-5-20251001"):  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:         "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:        "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:         "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return string(c.model)
}

// Tracker returns the token tracker for this client.
func (c *AnthropicClient) Tracker() *TokenTracker {
	return c.tracker
}
