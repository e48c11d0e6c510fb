package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/report"
	"github.com/ShayCichocki/agentboard/internal/state"
	"github.com/ShayCichocki/agentboard/internal/tui"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

var (
	runTUI     bool
	runFormat  string
	runNoStore bool
	runDetails bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a task against every configured agent",
	Long: `Run a task against every configured task agent in parallel.

Each agent gets the same prompt and the same timeout
(execution.timeout_seconds). When all agents have finished, the evaluation
agent scores every answer from 0 to 100 and the ranked leaderboard is
printed.

Results are saved to the database unless --no-store is given. If the
database cannot be written the run still completes and the leaderboard is
ranked in memory.

Use --tui for a live view of every agent's status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live agent status in a terminal UI")
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, markdown, json or yaml")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Do not persist results")
	runCmd.Flags().BoolVar(&runDetails, "details", false, "Show each agent's answer and tool calls")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return benchmark.ErrEmptyPrompt
	}
	format, err := report.ParseFormat(runFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var store state.Store
	if !runNoStore {
		db, err := openStore(ctx, cfg)
		if err != nil {
			log.Printf("[run] %v; results will not be saved", err)
		} else {
			defer db.Close()
			store = db
		}
	}

	logger, err := execution.NewDebugLogger(cfg.Logging.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	runSession := func(ctx context.Context, emitter *execution.EventEmitter) (*benchmark.Report, error) {
		session, err := benchmark.NewSession(benchmark.SessionConfig{
			Config:  *cfg,
			Store:   store,
			Emitter: emitter,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return session.Run(ctx, prompt)
	}

	var rep *benchmark.Report
	if runTUI {
		rep, err = tui.Run(ctx, prompt, runSession)
	} else {
		rep, err = runWithProgress(ctx, cmd.ErrOrStderr(), cfg, runSession)
	}
	if err != nil {
		return err
	}
	if store != nil && rep.TaskID != 0 {
		invalidateCached(context.WithoutCancel(ctx), cfg, rep.TaskID)
	}
	if err := report.WriteRun(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}
	if runDetails {
		return report.WriteDetails(cmd.OutOrStdout(), format, rep.Leaderboard)
	}
	return nil
}

// runWithProgress runs fn while printing one line per finished agent.
func runWithProgress(ctx context.Context, w io.Writer, cfg *config.Config, fn tui.RunFunc) (*benchmark.Report, error) {
	printStatus(w, "▶", fmt.Sprintf("Running %d agents (timeout %s)...", len(cfg.TaskAgents), cfg.Execution.Timeout()), color.FgCyan)

	emitter := execution.NewEventEmitter(64)
	done := make(chan struct{})
	go func() {
		printProgress(w, emitter.Events())
		close(done)
	}()

	rep, err := fn(ctx, emitter)
	emitter.Close()
	<-done
	if err == nil {
		printStatus(w, "▶", "Evaluation finished", color.FgCyan)
	}
	return rep, err
}

// printProgress prints agent completions until events is closed.
func printProgress(w io.Writer, events <-chan execution.Event) {
	for ev := range events {
		if ev.Type != execution.EventAgentFinished {
			continue
		}
		msg := fmt.Sprintf("%s %s in %s", ev.Agent, ev.Status, ev.Duration.Round(10*time.Millisecond))
		if ev.Error != "" {
			msg += ": " + ev.Error
		}
		switch ev.Status {
		case models.ExecutionCompleted:
			printStatus(w, "✓", msg, color.FgGreen)
		case models.ExecutionTimeout:
			printStatus(w, "⏱", msg, color.FgYellow)
		default:
			printStatus(w, "✗", msg, color.FgRed)
		}
	}
}
