package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockChatServer simulates the chat service's HTTP endpoints for tests:
// room pages with an fkey, the events window, message posting, and leave.
type MockChatServer struct {
	*httptest.Server

	mu       sync.Mutex
	Handlers map[string]http.HandlerFunc
}

// NewMockChatServer creates a mock chat service. Routes not configured via
// the helpers (or Handle) answer 404, which conveniently doubles as the
// service's own "room gone" signal.
func NewMockChatServer(t *testing.T) *MockChatServer {
	t.Helper()
	m := &MockChatServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.Handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers a raw handler for a path.
func (m *MockChatServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	m.Handlers[path] = h
	m.mu.Unlock()
}

// MockRoomPage serves a minimal room page carrying the fkey. When canPost is
// true the page also renders the message input box, which is how the client
// decides whether posting is allowed.
func (m *MockChatServer) MockRoomPage(roomID int, fkey string, canPost bool) {
	m.Handle(fmt.Sprintf("/rooms/%d", roomID), func(w http.ResponseWriter, r *http.Request) {
		page := fmt.Sprintf(`<html><body><form><input name="fkey" type="hidden" value="%s"></form>`, fkey)
		if canPost {
			page += `<textarea id="input"></textarea>`
		}
		page += `</body></html>`
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	})
}

// MockEvents serves the events endpoint for a room. The callback receives
// the requested msgCount and returns the event records to include, so tests
// can model a backlog larger than the initial fetch size.
func (m *MockChatServer) MockEvents(roomID int, events func(msgCount int) []map[string]any) {
	m.Handle(fmt.Sprintf("/chats/%d/events", roomID), func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		count := 0
		_, _ = fmt.Sscanf(r.PostFormValue("msgCount"), "%d", &count)
		response := map[string]any{"events": events(count)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})
}

// MockPostMessage serves the new-message endpoint, returning sequential
// message IDs starting at firstID.
func (m *MockChatServer) MockPostMessage(roomID int, firstID int64) {
	var mu sync.Mutex
	next := firstID
	m.Handle(fmt.Sprintf("/chats/%d/messages/new", roomID), func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		id := next
		next++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": id, "time": 1700000000})
	})
}

// MockLeave serves the leave endpoint and records the received form values.
func (m *MockChatServer) MockLeave(roomID int, got *map[string]string) {
	m.Handle(fmt.Sprintf("/chats/leave/%d", roomID), func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got != nil {
			*got = map[string]string{
				"quiet": r.PostFormValue("quiet"),
				"fkey":  r.PostFormValue("fkey"),
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}

// Event builds one wire-format event record.
func Event(roomID int, msgID, userID int64, userName, content string, timeStamp int64) map[string]any {
	return map[string]any{
		"room_id":    roomID,
		"message_id": msgID,
		"user_id":    userID,
		"user_name":  userName,
		"content":    content,
		"time_stamp": timeStamp,
	}
}
