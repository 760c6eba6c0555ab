package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/stackchat/chat"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine  *chat.Client
	db      *sql.DB
	started time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(engine *chat.Client, db *sql.DB) *Handlers {
	return &Handlers{engine: engine, db: db, started: time.Now()}
}

// HandleHealthz responds to liveness probes. When the archive database is
// configured it must be reachable for the process to count as healthy.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes: ready once at least one room is
// joined and, when configured, the archive database answers.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	fail := func(check string, err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       "not_ready",
			"failed_check": check,
			"error":        err.Error(),
		})
	}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			fail("database", err)
			return
		}
	}
	if len(h.engine.Rooms()) == 0 {
		fail("rooms", errNoRooms)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

var errNoRooms = &notReadyError{"no rooms joined"}

type notReadyError struct{ msg string }

func (e *notReadyError) Error() string { return e.msg }

// HandleStatus reports per-room sync state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	type statusResponse struct {
		UptimeSeconds int64             `json:"uptime_seconds"`
		Rooms         []chat.RoomStatus `json:"rooms"`
	}
	resp := statusResponse{
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Rooms:         h.engine.Status(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
