package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/execution"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame of the run stream. Type is "status" while the
// run is in progress and "report" for the final frame.
type StreamMessage struct {
	Type   string              `json:"type"`
	Status *execution.Snapshot `json:"status,omitempty"`
	Report *benchmark.Report   `json:"report,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// handleRunStream pushes a snapshot every time the run's status changes and
// closes after the final report.
func (s *Server) handleRunStream(c *gin.Context) {
	r, ok := s.runs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[server] failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		// Take the update channel before the snapshot so no change is missed.
		updated := r.tracker.Updated()
		snap := r.tracker.Snapshot()
		if err := writeJSON(conn, StreamMessage{Type: "status", Status: &snap}); err != nil {
			return
		}

		select {
		case <-updated:
		case <-r.done:
			final := r.tracker.Snapshot()
			msg := StreamMessage{Type: "report", Status: &final, Report: r.report}
			if r.err != nil {
				msg.Error = r.err.Error()
			}
			if err := writeJSON(conn, msg); err != nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[server] websocket error: %v", err)
			}
			return
		}
	}
}
