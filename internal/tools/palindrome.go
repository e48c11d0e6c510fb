package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Palindrome checks text for palindromes ignoring case and punctuation.
type Palindrome struct{}

func (Palindrome) Name() string { return "check_palindrome" }

func (Palindrome) Description() string {
	return "Check whether text reads the same forwards and backwards, ignoring case and non-alphanumeric characters."
}

func (Palindrome) InputSchema() Schema {
	return Schema{
		Properties: map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to check",
			},
		},
		Required: []string{"text"},
	}
}

// PalindromeResult is the check_palindrome output.
type PalindromeResult struct {
	IsPalindrome bool   `json:"is_palindrome"`
	CleanedText  string `json:"cleaned_text"`
	Reason       string `json:"reason"`
}

func (p Palindrome) Invoke(_ context.Context, input json.RawMessage) (any, error) {
	var params struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return CheckPalindrome(params.Text), nil
}

// CheckPalindrome lowercases text, drops everything but letters and digits,
// and compares the result with its reverse.
func CheckPalindrome(text string) PalindromeResult {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return PalindromeResult{CleanedText: cleaned, Reason: "No alphanumeric characters found"}
	}

	runes := []rune(cleaned)
	is := true
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		if runes[i] != runes[j] {
			is = false
			break
		}
	}

	reason := "Text is not a palindrome"
	if is {
		reason = "Text is a palindrome"
	}
	return PalindromeResult{IsPalindrome: is, CleanedText: cleaned, Reason: reason}
}
