package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// ErrNoAPIKey is returned when an agent's key variable is unset or empty.
var ErrNoAPIKey = errors.New("no API key configured")

// DefaultAPIKeyEnv returns the conventional key variable for a provider.
func DefaultAPIKeyEnv(p models.Provider) string {
	switch p {
	case models.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case models.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case models.ProviderGemini:
		return "GEMINI_API_KEY"
	case models.ProviderGroq:
		return "GROQ_API_KEY"
	case models.ProviderHuggingFace:
		return "HF_TOKEN"
	default:
		return ""
	}
}

// GetAPIKey returns the API key for an agent from its environment variable.
func GetAPIKey(a AgentConfig) (string, error) {
	env := a.KeyEnv()
	if env == "" {
		return "", fmt.Errorf("%w: provider %q has no key variable", ErrNoAPIKey, a.Provider)
	}
	key := strings.TrimSpace(os.Getenv(env))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoAPIKey, env)
	}
	return key, nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 6 and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:6] + "..." + key[len(key)-4:]
}

// KeySource represents whether an agent's key is available.
type KeySource string

const (
	KeySourceEnv  KeySource = "environment"
	KeySourceAWS  KeySource = "aws"
	KeySourceNone KeySource = "none"
)

// GetAPIKeySource reports where an agent's credentials come from.
func GetAPIKeySource(a AgentConfig) KeySource {
	if a.UseBedrock {
		return KeySourceAWS
	}
	if _, err := GetAPIKey(a); err == nil {
		return KeySourceEnv
	}
	return KeySourceNone
}
