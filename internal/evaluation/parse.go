// Package evaluation scores task outcomes with an evaluation agent.
package evaluation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Fixed explanations.
const (
	// FailedExplanation is recorded for failed and timed-out executions.
	FailedExplanation = "Execution failed"
	// NoExplanation is used when the response has nothing after the score.
	NoExplanation = "No explanation provided"
	// NoToolCalls fills {agent_trace} when the agent called no tools.
	NoToolCalls = "(no tool calls)"
)

var (
	// ErrMalformedResponse indicates the response has no parseable score.
	ErrMalformedResponse = errors.New("malformed evaluation response")
	// ErrScoreOutOfRange indicates a score outside 0-100. Scores are never clamped.
	ErrScoreOutOfRange = errors.New("score out of range (must be 0-100)")
	// ErrEvaluatorFailed indicates the evaluation agent call itself failed.
	ErrEvaluatorFailed = errors.New("evaluation agent failed")
)

var (
	scorePattern       = regexp.MustCompile(`(?i)Score:\s*(-?\d+)`)
	explanationPattern = regexp.MustCompile(`(?is)Explanation:\s*(.*)`)
)

// ParseResponse extracts the score and explanation from an evaluation
// response. The explanation is everything after "Explanation:", across
// every following line, with surrounding whitespace trimmed. Without that
// marker it is the text following the score.
func ParseResponse(text string) (int, string, error) {
	loc := scorePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, "", fmt.Errorf("%w: no score found", ErrMalformedResponse)
	}

	raw := text[loc[2]:loc[3]]
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s", ErrScoreOutOfRange, raw)
	}
	if !models.ValidScore(score) {
		return 0, "", fmt.Errorf("%w: got %d", ErrScoreOutOfRange, score)
	}

	explanation := ""
	if m := explanationPattern.FindStringSubmatch(text); m != nil {
		explanation = strings.TrimSpace(m[1])
	}
	if explanation == "" {
		explanation = strings.TrimSpace(text[loc[1]:])
		if i := strings.Index(strings.ToLower(explanation), "explanation:"); i >= 0 {
			explanation = strings.TrimSpace(explanation[:i])
		}
	}
	if explanation == "" {
		explanation = NoExplanation
	}
	return score, explanation, nil
}

// RenderPrompt substitutes the task prompt, agent response and rendered
// tool calls into template in a single pass, so placeholder text inside any
// value is left alone.
func RenderPrompt(template, taskPrompt, response, toolCalls string) string {
	return strings.NewReplacer(
		config.PlaceholderTaskPrompt, taskPrompt,
		config.PlaceholderAgentResponse, response,
		config.PlaceholderAgentTrace, toolCalls,
	).Replace(template)
}
