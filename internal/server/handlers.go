package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/state"
)

const defaultHistoryLimit = 20

// RunRequest is the body of POST /api/runs.
type RunRequest struct {
	Prompt string `json:"prompt"`
}

// RunStatus is the body of GET /api/runs/:id.
type RunStatus struct {
	RunID  string             `json:"run_id"`
	Prompt string             `json:"prompt"`
	Done   bool               `json:"done"`
	Status execution.Snapshot `json:"status"`
	Report *benchmark.Report  `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// TaskDetail is the body of GET /api/tasks/:id.
type TaskDetail struct {
	Task       *state.Task       `json:"task"`
	Executions []state.Execution `json:"executions"`
}

func errorJSON(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
		return false
	}
	return true
}

// storeError maps store errors to status codes.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, state.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case errors.Is(err, state.ErrInvalidInput):
		errorJSON(c, http.StatusBadRequest, err)
	default:
		log.Printf("[server] store error: %v", err)
		errorJSON(c, http.StatusInternalServerError, err)
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.store == nil {
		status = "degraded"
	} else if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		errorJSON(c, http.StatusBadRequest, benchmark.ErrEmptyPrompt)
		return
	}

	emitter := execution.NewEventEmitter(64)
	session, err := s.newSession(*s.cfg.Load(), emitter)
	if err != nil {
		emitter.Close()
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	r := &run{
		id:      uuid.New().String()[:8],
		prompt:  req.Prompt,
		tracker: execution.NewStatusTracker(),
		done:    make(chan struct{}),
	}
	s.runs.add(r)
	go r.tracker.Consume(emitter.Events())

	go func() {
		defer close(r.done)
		report, err := session.RunWithID(s.ctx, req.Prompt, r.id)
		emitter.Close()
		r.report, r.err = report, err
		if err != nil {
			log.Printf("[server] run %s failed: %v", r.id, err)
			return
		}
		if s.reader != nil && report.TaskID != 0 {
			s.reader.Invalidate(context.Background(), report.TaskID)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": r.id})
}

func (s *Server) runStatus(r *run) RunStatus {
	st := RunStatus{RunID: r.id, Prompt: r.prompt, Status: r.tracker.Snapshot()}
	if r.finished() {
		st.Done = true
		st.Report = r.report
		if r.err != nil {
			st.Error = r.err.Error()
		}
	}
	return st
}

func (s *Server) handleGetRun(c *gin.Context) {
	r, ok := s.runs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, s.runStatus(r))
}

func (s *Server) handleListTasks(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	history, err := s.store.TaskHistory(c.Request.Context(), limit)
	if err != nil {
		storeError(c, err)
		return
	}
	if history == nil {
		history = []state.TaskSummary{}
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleGetTask(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	execs, err := s.store.ListExecutions(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	if execs == nil {
		execs = []state.Execution{}
	}
	c.JSON(http.StatusOK, TaskDetail{Task: task, Executions: execs})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		storeError(c, err)
		return
	}
	s.reader.Invalidate(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.store.GetTask(c.Request.Context(), id); err != nil {
		storeError(c, err)
		return
	}

	entries, err := s.reader.Leaderboard(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	if entries == nil {
		entries = []state.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handlePerformance(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var taskID *int64
	if v := c.Query("task_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
			return
		}
		taskID = &id
	}

	perf, err := s.store.PerformanceMetrics(c.Request.Context(), taskID)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}
