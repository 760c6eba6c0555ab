package chat

// Shared test doubles for the engine tests: an in-memory transport holding a
// room's full history, and a recording handler.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/stackchat/chatapi"
)

type fakeTransport struct {
	mu sync.Mutex

	page    *chatapi.RoomPage
	pageErr error

	// history is the room's complete message list, ascending by ID. Messages
	// answers with the count most recent entries, like the real service.
	history     []chatapi.Event
	messagesErr error
	countsSeen  []int

	nextPostID int64
	postErr    error
	leaveCalls []int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		page:       &chatapi.RoomPage{FKey: "testfkey", CanPost: true},
		nextPostID: 1000,
	}
}

func (f *fakeTransport) FetchRoomPage(ctx context.Context, roomID int) (*chatapi.RoomPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.page, nil
}

func (f *fakeTransport) Messages(ctx context.Context, roomID int, fkey string, count int) ([]chatapi.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	f.countsSeen = append(f.countsSeen, count)
	h := f.history
	if count < len(h) {
		h = h[len(h)-count:]
	}
	out := make([]chatapi.Event, len(h))
	copy(out, h)
	return out, nil
}

func (f *fakeTransport) PostMessage(ctx context.Context, roomID int, fkey, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return 0, f.postErr
	}
	f.nextPostID++
	return f.nextPostID, nil
}

func (f *fakeTransport) LeaveRoom(ctx context.Context, roomID int, fkey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaveCalls = append(f.leaveCalls, roomID)
	return nil
}

func (f *fakeTransport) setHistory(events []chatapi.Event) {
	f.mu.Lock()
	f.history = events
	f.mu.Unlock()
}

// editContent rewrites the content of the message with the given ID.
func (f *fakeTransport) editContent(msgID int64, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.history {
		if f.history[i].MessageID == msgID {
			f.history[i].Content = content
			return
		}
	}
	panic(fmt.Sprintf("no message %d in fake history", msgID))
}

func (f *fakeTransport) lastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.countsSeen) == 0 {
		return 0
	}
	return f.countsSeen[len(f.countsSeen)-1]
}

// event builds one history entry.
func event(roomID int, msgID int64, ts time.Time, content string) chatapi.Event {
	return chatapi.Event{
		Content:   content,
		UserID:    100 + msgID,
		UserName:  fmt.Sprintf("user%d", msgID),
		RoomID:    roomID,
		MessageID: msgID,
		TimeStamp: ts.Unix(),
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	news   []Message
	edits  []Message
	errs   []error
	onNew  func(Message) // optional hook, runs inside OnMessage
	onEdit func(Message)
}

func (h *recordingHandler) OnMessage(m Message) {
	h.mu.Lock()
	h.news = append(h.news, m)
	hook := h.onNew
	h.mu.Unlock()
	if hook != nil {
		hook(m)
	}
}

func (h *recordingHandler) OnMessageEdited(m Message) {
	h.mu.Lock()
	h.edits = append(h.edits, m)
	hook := h.onEdit
	h.mu.Unlock()
	if hook != nil {
		hook(m)
	}
}

func (h *recordingHandler) OnError(roomID int, err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *recordingHandler) counts() (news, edits, errs int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.news), len(h.edits), len(h.errs)
}

// newTestClient wires an engine to the fake transport with a frozen clock.
func newTestClient(f *fakeTransport, now time.Time) *Client {
	c := New(f, Options{Heartbeat: time.Millisecond, EditWindow: 2 * time.Minute})
	c.now = func() time.Time { return now }
	return c
}
