package chatapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/onnwee/stackchat/testutil"
)

func TestFetchRoomPage(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	srv.MockRoomPage(139, "0123456789abcdef0123456789abcdef", true)

	c := NewClient(srv.URL)
	page, err := c.FetchRoomPage(context.Background(), 139)
	if err != nil {
		t.Fatalf("FetchRoomPage: %v", err)
	}
	if page.FKey != "0123456789abcdef0123456789abcdef" {
		t.Errorf("FKey = %q", page.FKey)
	}
	if !page.CanPost {
		t.Error("CanPost = false, want true")
	}
}

func TestFetchRoomPageNoInputBox(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	srv.MockRoomPage(139, "feedfacefeedfacefeedfacefeedface", false)

	c := NewClient(srv.URL)
	page, err := c.FetchRoomPage(context.Background(), 139)
	if err != nil {
		t.Fatalf("FetchRoomPage: %v", err)
	}
	if page.CanPost {
		t.Error("CanPost = true for a read-only room page")
	}
}

func TestFetchRoomPageNotFound(t *testing.T) {
	srv := testutil.NewMockChatServer(t)

	c := NewClient(srv.URL)
	_, err := c.FetchRoomPage(context.Background(), 999)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestFetchRoomPageMissingFKey(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	srv.Handle("/rooms/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no token here</body></html>"))
	})

	c := NewClient(srv.URL)
	if _, err := c.FetchRoomPage(context.Background(), 1); err == nil {
		t.Error("expected error for page without fkey")
	}
}

func TestMessagesFormFieldsAndOrder(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	var gotForm map[string]string
	srv.Handle("/chats/7/events", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = map[string]string{
			"mode":     r.PostFormValue("mode"),
			"msgCount": r.PostFormValue("msgCount"),
			"fkey":     r.PostFormValue("fkey"),
		}
		w.Header().Set("Content-Type", "application/json")
		// Deliberately newest-first to check the client sorts ascending.
		_, _ = w.Write([]byte(`{"events":[
			{"content":"b","user_id":2,"user_name":"bee","room_id":7,"message_id":21,"time_stamp":1700000060},
			{"content":"a","user_id":1,"user_name":"ay","room_id":7,"message_id":20,"time_stamp":1700000000}
		]}`))
	})

	c := NewClient(srv.URL)
	events, err := c.Messages(context.Background(), 7, "tok", 25)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if gotForm["mode"] != "messages" || gotForm["msgCount"] != "25" || gotForm["fkey"] != "tok" {
		t.Errorf("form = %v", gotForm)
	}
	if len(events) != 2 || events[0].MessageID != 20 || events[1].MessageID != 21 {
		t.Errorf("events not in ascending ID order: %+v", events)
	}
}

func TestPostMessage(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	srv.MockPostMessage(7, 500)

	c := NewClient(srv.URL)
	id, err := c.PostMessage(context.Background(), 7, "tok", "hello")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if id != 500 {
		t.Errorf("id = %d, want 500", id)
	}
}

func TestPostMessageRoomGone(t *testing.T) {
	srv := testutil.NewMockChatServer(t)

	c := NewClient(srv.URL)
	_, err := c.PostMessage(context.Background(), 7, "tok", "hello")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestLeaveRoom(t *testing.T) {
	srv := testutil.NewMockChatServer(t)
	var got map[string]string
	srv.MockLeave(7, &got)

	c := NewClient(srv.URL)
	if err := c.LeaveRoom(context.Background(), 7, "tok"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if got["quiet"] != "true" || got["fkey"] != "tok" {
		t.Errorf("leave form = %v, want quiet=true fkey=tok", got)
	}
}

func TestLeaveRoomAlreadyGone(t *testing.T) {
	srv := testutil.NewMockChatServer(t)

	c := NewClient(srv.URL)
	if err := c.LeaveRoom(context.Background(), 7, "tok"); err != nil {
		t.Errorf("LeaveRoom on 404 = %v, want nil", err)
	}
}
