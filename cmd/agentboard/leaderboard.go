package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/cache"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/report"
	"github.com/ShayCichocki/agentboard/internal/state"
)

var (
	leaderboardFormat  string
	leaderboardDetails bool
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <task-id>",
	Short: "Show the ranked results of a task",
	Long: `Show the leaderboard of a previously run task.

Entries are ranked by evaluation score (highest first), then by duration
(fastest first). Executions without an evaluation are listed last.

When cache.redis_addr is configured the leaderboard is read through the
redis cache.

--details adds every agent's answer and tool-call tree below the table.
JSON and YAML output always include both.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		format, err := report.ParseFormat(leaderboardFormat)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.GetTask(ctx, taskID); err != nil {
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("task %d not found", taskID)
			}
			return err
		}

		reader, closeCache := leaderboardReader(ctx, cfg, db)
		defer closeCache()

		entries, err := reader.Leaderboard(ctx, taskID)
		if err != nil {
			return err
		}
		if err := report.WriteLeaderboard(cmd.OutOrStdout(), format, entries); err != nil {
			return err
		}
		if leaderboardDetails {
			return report.WriteDetails(cmd.OutOrStdout(), format, entries)
		}
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardFormat, "format", "table", "Output format: table, markdown, json or yaml")
	leaderboardCmd.Flags().BoolVar(&leaderboardDetails, "details", false, "Show each agent's answer and tool calls")
}

type leaderboardSource interface {
	Leaderboard(ctx context.Context, taskID int64) ([]state.LeaderboardEntry, error)
}

// leaderboardReader returns a cached reader when redis is configured and
// reachable, otherwise the store itself.
func leaderboardReader(ctx context.Context, cfg *config.Config, store state.ReportStore) (leaderboardSource, func()) {
	if !cfg.Cache.Enabled() {
		return store, func() {}
	}
	c, err := cache.New(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
	if err != nil {
		log.Printf("[leaderboard] cache unavailable: %v", err)
		return store, func() {}
	}
	return cache.NewLeaderboardReader(store, c), func() { c.Close() }
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// invalidateCached drops taskID's cached leaderboard, if a cache is
// configured.
func invalidateCached(ctx context.Context, cfg *config.Config, taskID int64) {
	if !cfg.Cache.Enabled() {
		return
	}
	c, err := cache.New(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
	if err != nil {
		log.Printf("[leaderboard] cache unavailable: %v", err)
		return
	}
	defer c.Close()
	if err := c.Invalidate(ctx, taskID); err != nil {
		log.Printf("[leaderboard] invalidate task %d: %v", taskID, err)
	}
}
