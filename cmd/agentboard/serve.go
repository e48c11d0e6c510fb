package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/cache"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/server"
)

var (
	serveAddr  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and live run status",
	Long: `Start the HTTP API.

Endpoints:
  POST   /api/runs                     submit a prompt, returns a run id
  GET    /api/runs/:id                 live status of a run
  GET    /ws/runs/:id                  websocket stream of run status
  GET    /api/tasks                    task history (?limit=)
  GET    /api/tasks/:id                task with its executions
  DELETE /api/tasks/:id                delete a task
  GET    /api/tasks/:id/leaderboard    ranked results
  GET    /api/metrics/performance      per-model metrics (?task_id=)
  GET    /metrics                      Prometheus metrics
  GET    /healthz                      health check

When the configuration was read from a file, edits to that file are picked
up by runs submitted afterwards.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Run gin in debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !serveDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var c *cache.Cache
	if cfg.Cache.Enabled() {
		c, err = cache.New(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			log.Printf("[serve] leaderboard cache disabled: %v", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	logger, err := execution.NewDebugLogger(cfg.Logging.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	srv := server.New(server.Options{
		Config: cfg,
		Store:  db,
		Cache:  c,
		NewSession: func(cfg config.Config, emitter *execution.EventEmitter) (*benchmark.Session, error) {
			return benchmark.NewSession(benchmark.SessionConfig{
				Config:  cfg,
				Store:   db,
				Emitter: emitter,
				Logger:  logger,
			})
		},
	})
	defer srv.Close()

	if path := config.UsedPath(cfgFile); path != "" {
		w, err := config.Watch(path, func(next *config.Config) {
			srv.SetConfig(next)
			log.Printf("[serve] reloaded config from %s", path)
		}, func(err error) {
			log.Printf("[serve] config reload rejected: %v", err)
		})
		if err != nil {
			log.Printf("[serve] not watching config: %v", err)
		} else {
			defer w.Close()
		}
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	printStatus(cmd.OutOrStdout(), "▶", "Listening on "+addr, color.FgCyan)

	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
