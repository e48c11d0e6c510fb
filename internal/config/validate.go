package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/agentboard/internal/tools"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the agent line-up, credentials, tools and bounds.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	n := len(c.TaskAgents)
	if n < MinTaskAgents || n > MaxTaskAgents {
		errs = append(errs, fmt.Errorf("task_agents: need %d-%d agents, got %d", MinTaskAgents, MaxTaskAgents, n))
	}

	seen := make(map[models.ModelRef]int, n)
	for i, a := range c.TaskAgents {
		label := fmt.Sprintf("task_agents[%d]", i)
		errs = append(errs, validateAgent(label, a)...)
		for _, name := range a.Tools {
			if !knownTool(name) {
				errs = append(errs, fmt.Errorf("%s: unknown tool %q", label, name))
			}
		}
		ref := a.Ref()
		if prev, dup := seen[ref]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate model %s (also task_agents[%d])", label, ref.Identifier(), prev))
		} else {
			seen[ref] = i
		}
	}

	errs = append(errs, validateAgent("evaluation_agent", c.Evaluation.AgentConfig)...)
	if strings.TrimSpace(c.Evaluation.Prompt) == "" {
		errs = append(errs, errors.New("evaluation_agent.prompt: must not be empty"))
	} else {
		for _, ph := range []string{PlaceholderTaskPrompt, PlaceholderAgentResponse} {
			if !strings.Contains(c.Evaluation.Prompt, ph) {
				errs = append(errs, fmt.Errorf("evaluation_agent.prompt: missing placeholder %s", ph))
			}
		}
	}
	if c.Evaluation.TimeoutSeconds < MinTimeoutSeconds || c.Evaluation.TimeoutSeconds > MaxTimeoutSeconds {
		errs = append(errs, fmt.Errorf("evaluation_agent.timeout_seconds: must be %d-%d, got %d",
			MinTimeoutSeconds, MaxTimeoutSeconds, c.Evaluation.TimeoutSeconds))
	}
	if c.Evaluation.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("evaluation_agent.concurrency: must not be negative, got %d", c.Evaluation.Concurrency))
	}

	if c.Execution.TimeoutSeconds < MinTimeoutSeconds || c.Execution.TimeoutSeconds > MaxTimeoutSeconds {
		errs = append(errs, fmt.Errorf("execution.timeout_seconds: must be %d-%d, got %d",
			MinTimeoutSeconds, MaxTimeoutSeconds, c.Execution.TimeoutSeconds))
	}
	if c.Execution.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("execution.max_iterations: must not be negative, got %d", c.Execution.MaxIterations))
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver: must be sqlite or sqlite3, got %q", c.Database.Driver))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path: must not be empty"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validateAgent(label string, a AgentConfig) []error {
	var errs []error
	p := models.Provider(a.Provider)
	if !p.Valid() {
		errs = append(errs, fmt.Errorf("%s: unknown provider %q", label, a.Provider))
	}
	if strings.TrimSpace(a.Model) == "" {
		errs = append(errs, fmt.Errorf("%s: model must not be empty", label))
	}
	if a.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("%s: requests_per_minute must not be negative", label))
	}
	if a.UseBedrock {
		if p != models.ProviderAnthropic {
			errs = append(errs, fmt.Errorf("%s: use_bedrock requires provider anthropic", label))
		}
		return errs
	}
	if p.Valid() {
		env := a.KeyEnv()
		if val, ok := os.LookupEnv(env); !ok {
			errs = append(errs, fmt.Errorf("%s: environment variable %s not found", label, env))
		} else if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("%s: environment variable %s is empty", label, env))
		}
	}
	return errs
}

func knownTool(name string) bool {
	for _, t := range tools.Builtin() {
		if t.Name() == name {
			return true
		}
	}
	return false
}
