package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/agentboard/internal/evaluation"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

func TestLeaderboardView_NilReport(t *testing.T) {
	v := NewLeaderboardView()
	if !strings.Contains(v.View(), "No results") {
		t.Errorf("unexpected view: %q", v.View())
	}
}

func TestLeaderboardView_Rows(t *testing.T) {
	v := NewLeaderboardView()
	v.SetReport(finishedReport())
	view := v.View()

	for _, want := range []string{"Rank", "Score", "anthropic/claude-3-5-sonnet", "92", "A", "1.50s", "120", "groq/llama3", "failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "claude-3-5-sonnet") > strings.Index(view, "llama3") {
		t.Error("rows should follow leaderboard order")
	}
}

func TestLeaderboardView_WinnerDetail(t *testing.T) {
	v := NewLeaderboardView()
	v.SetReport(finishedReport())
	view := v.View()

	for _, want := range []string{"Answer", "The 10th prime is 29.", "Tool calls", `- check_prime {"n":29}`, `=> {"is_prime":true}`} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestLeaderboardView_WinnerDetailClipped(t *testing.T) {
	r := finishedReport()
	r.Leaderboard[0].Answer = strings.Repeat("line\n", maxAnswerLines+3)
	r.Leaderboard[0].ToolCalls = nil
	v := NewLeaderboardView()
	v.SetReport(r)
	view := v.View()

	if !strings.Contains(view, "... 3 more lines") {
		t.Errorf("answer not clipped:\n%s", view)
	}
	if !strings.Contains(view, "(none)") {
		t.Errorf("missing empty tool-call marker:\n%s", view)
	}
}

func TestLeaderboardView_NoWinner(t *testing.T) {
	r := finishedReport()
	r.Leaderboard = r.Leaderboard[1:]
	v := NewLeaderboardView()
	v.SetReport(r)

	if !strings.Contains(v.View(), "No execution was evaluated") {
		t.Errorf("unexpected view:\n%s", v.View())
	}
}

func TestLeaderboardView_Empty(t *testing.T) {
	r := finishedReport()
	r.Leaderboard = nil
	v := NewLeaderboardView()
	v.SetReport(r)

	if !strings.Contains(v.View(), "no executions recorded") {
		t.Errorf("unexpected view:\n%s", v.View())
	}
}

func TestLeaderboardView_Warnings(t *testing.T) {
	r := finishedReport()
	r.Degraded = true
	r.Warnings = []string{"create execution: disk full"}
	r.EvaluationErrors = []error{&evaluation.Error{Agent: models.ModelRef{Provider: models.ProviderOpenAI, Model: "gpt-4o"}, Err: errors.New("malformed")}}
	v := NewLeaderboardView()
	v.SetReport(r)
	view := v.View()

	for _, want := range []string{"not fully persisted", "disk full", "malformed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
