package models

import "fmt"

// Provider names a model vendor.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderGemini      Provider = "gemini"
	ProviderGroq        Provider = "groq"
	ProviderHuggingFace Provider = "huggingface"
)

// Providers lists every supported provider in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq, ProviderHuggingFace}
}

// Valid returns true if the provider is a known value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq, ProviderHuggingFace:
		return true
	default:
		return false
	}
}

// ModelRef identifies an agent by provider and model. Two agents in one
// batch never share a ModelRef.
type ModelRef struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
}

// Identifier returns the "provider/model" form used in tables and metrics.
func (r ModelRef) Identifier() string {
	return fmt.Sprintf("%s/%s", r.Provider, r.Model)
}

func (r ModelRef) String() string {
	return r.Identifier()
}
