package tui

import (
	"context"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/execution"
)

// RunFunc executes a benchmark, publishing progress through emitter.
type RunFunc func(ctx context.Context, emitter *execution.EventEmitter) (*benchmark.Report, error)

// Run drives fn under a full-screen TUI and returns its result. Closing the
// view early does not stop fn; Run still waits for it to return.
func Run(ctx context.Context, prompt string, fn RunFunc, opts ...tea.ProgramOption) (*benchmark.Report, error) {
	emitter := execution.NewEventEmitter(64)
	tracker := execution.NewStatusTracker()
	consumed := make(chan struct{})
	go func() {
		tracker.Consume(emitter.Events())
		close(consumed)
	}()

	app := NewApp(prompt)
	p := tea.NewProgram(app, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	var (
		report *benchmark.Report
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		report, runErr = fn(ctx, emitter)
		emitter.Close()
		<-consumed
		close(finished)
		p.Send(StatusMsg{Snapshot: tracker.Snapshot()})
		p.Send(DoneMsg{Report: report, Err: runErr})
	}()
	go forward(p.Send, tracker, finished)

	_, err := p.Run()
	if app.Detached() {
		log.Printf("[tui] view closed, waiting for run to finish")
	}
	<-finished
	if err != nil {
		return report, fmt.Errorf("tui: %w", err)
	}
	return report, runErr
}

// forward sends a StatusMsg for every tracker change until finished is
// closed.
func forward(send func(tea.Msg), tracker *execution.StatusTracker, finished <-chan struct{}) {
	for {
		updated := tracker.Updated()
		send(StatusMsg{Snapshot: tracker.Snapshot()})
		select {
		case <-updated:
		case <-finished:
			return
		}
	}
}
