// Package server exposes benchmark runs, history and leaderboards over HTTP,
// with live run status pushed over a websocket.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/cache"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/metrics"
	"github.com/ShayCichocki/agentboard/internal/state"
)

// SessionFactory builds a benchmark session for one run.
type SessionFactory func(cfg config.Config, emitter *execution.EventEmitter) (*benchmark.Session, error)

// Options configures a Server.
type Options struct {
	Config *config.Config
	// Store is required for every endpoint except run submission and status.
	Store state.Store
	// Cache is optional.
	Cache *cache.Cache
	// NewSession overrides session construction, mainly for tests.
	NewSession SessionFactory
	// MaxRuns bounds how many finished runs stay queryable.
	MaxRuns int
}

// Server handles HTTP requests.
type Server struct {
	router     *gin.Engine
	store      state.Store
	reader     *cache.LeaderboardReader
	newSession SessionFactory
	cfg        atomic.Pointer[config.Config]
	runs       *runRegistry

	// ctx outlives individual requests; runs started over HTTP use it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server with its routes registered.
func New(opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: gin.New(),
		store:  opts.Store,
		runs:   newRunRegistry(opts.MaxRuns),
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.Store != nil {
		s.reader = cache.NewLeaderboardReader(opts.Store, opts.Cache)
	}
	s.newSession = opts.NewSession
	if s.newSession == nil {
		s.newSession = func(cfg config.Config, emitter *execution.EventEmitter) (*benchmark.Session, error) {
			return benchmark.NewSession(benchmark.SessionConfig{
				Config:  cfg,
				Store:   opts.Store,
				Emitter: emitter,
			})
		}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s.cfg.Store(cfg)

	s.router.Use(gin.Recovery(), requestMetrics())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/runs/:id", s.handleRunStream)

	api := s.router.Group("/api")
	{
		api.POST("/runs", s.handleCreateRun)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/tasks/:id/leaderboard", s.handleLeaderboard)
		api.GET("/metrics/performance", s.handlePerformance)
	}
}

// Router returns the Gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// SetConfig replaces the configuration used by runs started after the call.
// Runs already in progress keep their own copy.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// Config returns the configuration new runs will use.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully and cancels runs in flight.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.cancel()
	return err
}

// Close cancels runs started by the server.
func (s *Server) Close() {
	s.cancel()
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
