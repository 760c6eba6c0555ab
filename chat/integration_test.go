package chat

// End-to-end: the engine driving the real chatapi client against the mock
// chat service, exercising the full join → poll → dispatch path over HTTP.

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/stackchat/chatapi"
	"github.com/onnwee/stackchat/testutil"
)

func TestEngineAgainstMockService(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	srv.MockRoomPage(15, "cafebabecafebabecafebabecafebabe", true)
	srv.MockPostMessage(15, 200)

	var mu sync.Mutex
	history := []map[string]any{
		testutil.Event(15, 100, 1, "alice", "pre-existing", time.Now().Add(-time.Hour).Unix()),
	}
	srv.MockEvents(15, func(msgCount int) []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		h := history
		if msgCount < len(h) {
			h = h[len(h)-msgCount:]
		}
		out := make([]map[string]any, len(h))
		copy(out, h)
		return out
	})

	transport := chatapi.NewClient(srv.URL)
	engine := New(transport, Options{Heartbeat: 10 * time.Millisecond})
	h := &recordingHandler{}
	engine.Listen(h)

	ctx := context.Background()
	if err := engine.JoinRoom(ctx, 15); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if news, edits, _ := h.counts(); news != 0 || edits != 0 {
		t.Fatalf("priming emitted events: %d/%d", news, edits)
	}

	// A message lands after the join.
	mu.Lock()
	history = append(history, testutil.Event(15, 101, 2, "bob", "hello there", time.Now().Unix()))
	mu.Unlock()

	engine.pollOnce(ctx)

	news, _, errs := h.counts()
	if news != 1 || errs != 0 {
		t.Fatalf("news=%d errs=%d, want 1/0", news, errs)
	}
	if m := h.news[0]; m.ID != 101 || m.UserName != "bob" || m.Content != "hello there" {
		t.Errorf("message = %+v", m)
	}

	// Posting goes through with the cached fkey.
	ids, err := engine.SendMessage(ctx, 15, "hi bob")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(ids) != 1 || ids[0] != 200 {
		t.Errorf("ids = %v, want [200]", ids)
	}

	// Leave posts the quiet form and drops the session.
	var leaveForm map[string]string
	srv.MockLeave(15, &leaveForm)
	if err := engine.LeaveRoom(ctx, 15); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if leaveForm["quiet"] != "true" || leaveForm["fkey"] != "cafebabecafebabecafebabecafebabe" {
		t.Errorf("leave form = %v", leaveForm)
	}
	if len(engine.Rooms()) != 0 {
		t.Error("room still tracked after leave")
	}
}
