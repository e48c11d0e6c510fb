package server

import (
	"sync"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/execution"
)

const defaultMaxRuns = 100

// run is one benchmark started over HTTP.
type run struct {
	id      string
	prompt  string
	tracker *execution.StatusTracker
	done    chan struct{}

	// report and err are written once before done is closed.
	report *benchmark.Report
	err    error
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// runRegistry tracks runs by ID and forgets the oldest finished runs once
// more than max are held.
type runRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*run
	order []string
	max   int
}

func newRunRegistry(max int) *runRegistry {
	if max <= 0 {
		max = defaultMaxRuns
	}
	return &runRegistry{runs: make(map[string]*run), max: max}
}

func (reg *runRegistry) add(r *run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[r.id] = r
	reg.order = append(reg.order, r.id)
	reg.evictLocked()
}

func (reg *runRegistry) get(id string) (*run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	return r, ok
}

func (reg *runRegistry) evictLocked() {
	for len(reg.runs) > reg.max {
		evicted := false
		for i, id := range reg.order {
			if reg.runs[id].finished() {
				delete(reg.runs, id)
				reg.order = append(reg.order[:i], reg.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
