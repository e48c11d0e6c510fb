// Package tui provides the terminal user interface for a benchmark run.
//
// The TUI is read-only. While a run is in progress it shows one row per
// task agent with its live status and elapsed time. Once the run finishes
// it switches to the ranked leaderboard. Users can quit with 'q' or Ctrl+C;
// quitting before the run finishes only closes the view.
//
// Usage:
//
//	report, err := tui.Run(ctx, prompt, func(ctx context.Context, emitter *execution.EventEmitter) (*benchmark.Report, error) {
//	    session, err := benchmark.NewSession(benchmark.SessionConfig{Config: cfg, Emitter: emitter})
//	    if err != nil {
//	        return nil, err
//	    }
//	    return session.Run(ctx, prompt)
//	})
//
// Callers that manage their own tea.Program can feed an App directly with
// StatusMsg and DoneMsg.
package tui
