package chat

import (
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/stackchat/chatapi"
)

// Message is a single chat message as observed by the engine. It is an
// immutable value; edits arrive as a fresh Message with the same ID.
// IDs are transport-assigned, unique within a room, monotonically
// increasing, and not necessarily contiguous.
type Message struct {
	RoomID    int
	ID        int64
	UserID    int64
	UserName  string
	Timestamp time.Time
	// Content is the raw message body. Empty means the message was deleted.
	Content string
	// FixedFont is set when the message was posted in fixed-font formatting,
	// which the service delivers wrapped in a pre tag.
	FixedFont bool
}

var fixedFontRe = regexp.MustCompile(`^<pre class='(full|partial)'>`)

func fromEvent(ev chatapi.Event) Message {
	content, fixed := parseContent(ev.Content)
	return Message{
		RoomID:    ev.RoomID,
		ID:        ev.MessageID,
		UserID:    ev.UserID,
		UserName:  ev.UserName,
		Timestamp: time.Unix(ev.TimeStamp, 0).UTC(),
		Content:   content,
		FixedFont: fixed,
	}
}

func parseContent(raw string) (content string, fixedFont bool) {
	m := fixedFontRe.FindString(raw)
	if m == "" {
		return raw, false
	}
	s := strings.TrimPrefix(raw, m)
	s = strings.TrimSuffix(s, "</pre>")
	return s, true
}

func messagesFromEvents(events []chatapi.Event) []Message {
	out := make([]Message, 0, len(events))
	for _, ev := range events {
		out = append(out, fromEvent(ev))
	}
	return out
}
