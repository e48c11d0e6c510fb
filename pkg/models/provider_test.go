package models

import "testing"

func TestProvider_Valid(t *testing.T) {
	for _, p := range Providers() {
		if !p.Valid() {
			t.Errorf("Provider(%q).Valid() = false, want true", p)
		}
	}

	for _, p := range []Provider{"", "OpenAI", "azure", "bedrock"} {
		if p.Valid() {
			t.Errorf("Provider(%q).Valid() = true, want false", p)
		}
	}
}

func TestModelRef_Identifier(t *testing.T) {
	ref := ModelRef{Provider: ProviderOpenAI, Model: "gpt-4o"}
	if got := ref.Identifier(); got != "openai/gpt-4o" {
		t.Errorf("Identifier() = %q, want %q", got, "openai/gpt-4o")
	}
	if ref.String() != ref.Identifier() {
		t.Errorf("String() = %q, want %q", ref.String(), ref.Identifier())
	}
}
