package execution

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// emitTimeout bounds how long Emit waits on a full buffer.
const emitTimeout = 100 * time.Millisecond

// EventEmitter delivers events to a single consumer over a buffered channel.
// A slow consumer loses events rather than stalling executors.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, waiting up to 100ms for buffer space before dropping
// it. Emit after Close is a no-op. Safe to call on a nil emitter.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(emitTimeout):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[execution] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events. It is closed by Close.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Calling it more than once is safe.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
