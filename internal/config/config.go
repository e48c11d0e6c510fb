// Package config handles configuration loading and validation for agentboard.
// Configuration is read with viper from agentboard.toml (or .yaml) in the
// working directory or the XDG config directory, with AGENTBOARD_* environment
// overrides. A loaded Config is a plain value: callers pass it explicitly and
// reload by loading a new one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Bounds on the task agent list and the per-agent timeout.
const (
	MinTaskAgents     = 2
	MaxTaskAgents     = 5
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 600

	DefaultTimeoutSeconds     = 60
	DefaultEvalTimeoutSeconds = 30
	DefaultMaxIterations      = 20
)

// Placeholders substituted into the evaluation prompt.
const (
	PlaceholderTaskPrompt    = "{task_prompt}"
	PlaceholderAgentResponse = "{agent_response}"

	// PlaceholderAgentTrace is optional. It receives the agent's tool calls
	// and their results as an indented listing.
	PlaceholderAgentTrace = "{agent_trace}"
)

// DefaultEvaluationPrompt is used when evaluation_agent.prompt is not set.
const DefaultEvaluationPrompt = `You are evaluating the performance of an AI agent that completed a task.

Task: {task_prompt}

Agent's Response: {agent_response}

Tool Calls:
{agent_trace}

Please evaluate the agent's response on the following criteria:
1. Correctness: Did the agent correctly complete the task?
2. Efficiency: Did the agent use tools appropriately?
3. Completeness: Did the agent provide a complete answer?

Provide:
1. A score from 0-100 (where 100 is perfect)
2. A brief explanation of your evaluation

Response format:
Score: [number]
Explanation: [your explanation]`

// Config holds all configuration for agentboard.
type Config struct {
	TaskAgents []AgentConfig    `mapstructure:"task_agents"`
	Evaluation EvaluationConfig `mapstructure:"evaluation_agent"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AgentConfig describes one model-backed agent.
type AgentConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `mapstructure:"base_url"`
	// Tools restricts the agent to the named tools. Empty means all.
	Tools []string `mapstructure:"tools"`
	// RequestsPerMinute throttles model calls. Zero disables the limit.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxTokens         int64   `mapstructure:"max_tokens"`

	// Anthropic via AWS Bedrock.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// Ref returns the agent's provider/model identity.
func (a AgentConfig) Ref() models.ModelRef {
	return models.ModelRef{Provider: models.Provider(a.Provider), Model: a.Model}
}

// KeyEnv returns the configured api_key_env or the provider's conventional one.
func (a AgentConfig) KeyEnv() string {
	if a.APIKeyEnv != "" {
		return a.APIKeyEnv
	}
	return DefaultAPIKeyEnv(models.Provider(a.Provider))
}

// EvaluationConfig describes the evaluation agent.
type EvaluationConfig struct {
	AgentConfig    `mapstructure:",squash"`
	Prompt         string `mapstructure:"prompt"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// Concurrency bounds parallel evaluation calls.
	Concurrency int `mapstructure:"concurrency"`
}

// Timeout returns the evaluation deadline.
func (e EvaluationConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// ExecutionConfig holds task execution settings.
type ExecutionConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxIterations  int `mapstructure:"max_iterations"`
}

// Timeout returns the per-agent deadline shared by every agent in a batch.
func (e ExecutionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// DatabaseConfig selects the SQLite driver and file.
type DatabaseConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// CacheConfig holds the optional redis leaderboard cache settings.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// DebugLog is a file path for detailed run logs. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load reads configuration from path, or searches the working directory and
// the user config directory for agentboard.{toml,yaml} when path is empty.
// A missing file is not an error when searching; defaults apply.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("agentboard")
		v.AddConfigPath(".")
		v.AddConfigPath(getUserConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	return Load(path)
}

// UsedPath returns the file Load would read for path, or "" if none exists.
func UsedPath(path string) string {
	if path != "" {
		return path
	}
	for _, dir := range []string{".", getUserConfigDir()} {
		for _, ext := range []string{"toml", "yaml", "yml"} {
			candidate := filepath.Join(dir, "agentboard."+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AGENTBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Logging.DebugLog = expandPath(cfg.Logging.DebugLog)
	return cfg, nil
}

// Save writes cfg to path. The format follows the file extension.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)

	agents := make([]map[string]any, 0, len(cfg.TaskAgents))
	for _, a := range cfg.TaskAgents {
		agents = append(agents, agentMap(a))
	}
	v.Set("task_agents", agents)

	for k, val := range agentMap(cfg.Evaluation.AgentConfig) {
		v.Set("evaluation_agent."+k, val)
	}
	v.Set("evaluation_agent.prompt", cfg.Evaluation.Prompt)
	v.Set("evaluation_agent.timeout_seconds", cfg.Evaluation.TimeoutSeconds)
	v.Set("evaluation_agent.concurrency", cfg.Evaluation.Concurrency)
	v.Set("execution.timeout_seconds", cfg.Execution.TimeoutSeconds)
	v.Set("execution.max_iterations", cfg.Execution.MaxIterations)
	v.Set("database.driver", cfg.Database.Driver)
	v.Set("database.path", cfg.Database.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("cache.redis_addr", cfg.Cache.RedisAddr)
	v.Set("cache.ttl", cfg.Cache.TTL.String())
	v.Set("logging.debug_log", cfg.Logging.DebugLog)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func agentMap(a AgentConfig) map[string]any {
	m := map[string]any{
		"provider":    a.Provider,
		"model":       a.Model,
		"api_key_env": a.APIKeyEnv,
	}
	if a.BaseURL != "" {
		m["base_url"] = a.BaseURL
	}
	if len(a.Tools) > 0 {
		m["tools"] = a.Tools
	}
	if a.RequestsPerMinute > 0 {
		m["requests_per_minute"] = a.RequestsPerMinute
	}
	if a.MaxTokens > 0 {
		m["max_tokens"] = a.MaxTokens
	}
	if a.UseBedrock {
		m["use_bedrock"] = true
		m["aws_region"] = a.AWSRegion
		m["aws_profile"] = a.AWSProfile
	}
	return m
}

// GetUserConfigPath returns the default user config file path.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "agentboard.toml")
}

// DefaultDatabasePath returns the XDG data path for the database.
func DefaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "agentboard.db"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "agentboard", "agentboard.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("evaluation_agent.prompt", DefaultEvaluationPrompt)
	v.SetDefault("evaluation_agent.timeout_seconds", DefaultEvalTimeoutSeconds)
	v.SetDefault("evaluation_agent.concurrency", 2)

	v.SetDefault("execution.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("execution.max_iterations", DefaultMaxIterations)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", DefaultDatabasePath())

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("logging.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for agentboard.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "agentboard")
	}
	return filepath.Join(home, ".config", "agentboard")
}

// expandPath expands ${VAR} references and a leading ~.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// Default returns a Config with default values and a sample agent line-up.
func Default() *Config {
	return &Config{
		TaskAgents: []AgentConfig{
			{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
			{Provider: "anthropic", Model: "claude-sonnet-4-5", APIKeyEnv: "ANTHROPIC_API_KEY"},
		},
		Evaluation: EvaluationConfig{
			AgentConfig:    AgentConfig{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "OPENAI_API_KEY"},
			Prompt:         DefaultEvaluationPrompt,
			TimeoutSeconds: DefaultEvalTimeoutSeconds,
			Concurrency:    2,
		},
		Execution: ExecutionConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
			MaxIterations:  DefaultMaxIterations,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   DefaultDatabasePath(),
		},
		Server: ServerConfig{Addr: ":8080"},
		Cache:  CacheConfig{TTL: 10 * time.Minute},
	}
}
