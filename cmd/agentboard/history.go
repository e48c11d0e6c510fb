package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/report"
	"github.com/ShayCichocki/agentboard/internal/state"
)

var (
	historyLimit  int
	historyFormat string
	metricsTaskID int64
	metricsFormat string
	purgeAge      time.Duration
	purgeYes      bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously submitted tasks",
	Long: `List previously submitted tasks, newest first, with the number of
executions and the best evaluation score of each.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		tasks, err := db.TaskHistory(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return report.WriteHistory(cmd.OutOrStdout(), format, tasks)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show per-model performance metrics",
	Long: `Show duration and token statistics for every model, computed over its
completed executions. Use --task to restrict the statistics to one task.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(metricsFormat)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		var taskID *int64
		if cmd.Flags().Changed("task") {
			if metricsTaskID <= 0 {
				return fmt.Errorf("invalid task id %d", metricsTaskID)
			}
			taskID = &metricsTaskID
		}
		metrics, err := db.PerformanceMetrics(cmd.Context(), taskID)
		if err != nil {
			return err
		}
		return report.WritePerformance(cmd.OutOrStdout(), format, metrics)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and all of its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteTask(cmd.Context(), taskID); err != nil {
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("task %d not found", taskID)
			}
			return err
		}
		invalidateCached(cmd.Context(), cfg, taskID)
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Deleted task %d", taskID), color.FgGreen)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete tasks older than a given age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeAge <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		if !purgeYes {
			return fmt.Errorf("refusing to delete without --yes")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOlderThan(cmd.Context(), purgeAge)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Deleted %d tasks older than %s", n, purgeAge), color.FgGreen)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of tasks to list (0 for all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "Output format: table, markdown, json or yaml")

	metricsCmd.Flags().Int64Var(&metricsTaskID, "task", 0, "Only include executions of this task")
	metricsCmd.Flags().StringVar(&metricsFormat, "format", "table", "Output format: table, markdown, json or yaml")

	purgeCmd.Flags().DurationVar(&purgeAge, "older-than", 30*24*time.Hour, "Delete tasks submitted before this age")
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "Confirm deletion")
}
