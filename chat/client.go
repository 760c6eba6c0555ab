package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/stackchat/chatapi"
	"github.com/onnwee/stackchat/telemetry"
)

// Transport is the slice of the chat HTTP API the engine needs. It is
// implemented by *chatapi.Client; tests substitute fakes.
type Transport interface {
	FetchRoomPage(ctx context.Context, roomID int) (*chatapi.RoomPage, error)
	Messages(ctx context.Context, roomID int, fkey string, count int) ([]chatapi.Event, error)
	PostMessage(ctx context.Context, roomID int, fkey, text string) (int64, error)
	LeaveRoom(ctx context.Context, roomID int, fkey string) error
}

// Handler receives engine events. Callbacks run synchronously on the polling
// goroutine, so a slow handler stretches the heartbeat. A callback may call
// LeaveRoom for the room it is handling; the rest of that room's batch is
// then skipped and the room's boundary left untouched.
type Handler interface {
	OnMessage(m Message)
	OnMessageEdited(m Message)
	OnError(roomID int, err error)
}

// FetchError reports one room's failed poll cycle. Other rooms in the same
// cycle are unaffected.
type FetchError struct {
	RoomID int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("room %d: fetch failed: %v", e.RoomID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports a failed message post, carrying the room so callers can
// route it without parsing.
type SendError struct {
	RoomID int
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("room %d: send failed: %v", e.RoomID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ErrNotJoined is returned when an operation targets a room the engine is
// not currently tracking.
var ErrNotJoined = errors.New("room not joined")

// Options tune the engine. Zero values get defaults.
type Options struct {
	// Heartbeat is the target interval between poll cycles (default 4s).
	Heartbeat time.Duration
	// EditWindow is how long the service keeps a message editable
	// (default 2m). Edits older than this are not detectable; that is an
	// accepted staleness limit, not a bug.
	EditWindow time.Duration
}

// Client is the synchronization engine. It is safe for the polling loop and
// consumer goroutines (join/leave/send) to run concurrently: one mutex
// guards the room→session map, and every network call happens outside it.
type Client struct {
	transport  Transport
	heartbeat  time.Duration
	editWindow time.Duration

	// now is a seam for the fetcher and tests; real code keeps time.Now.
	now func() time.Time

	mu       sync.Mutex
	sessions map[int]*session
	handler  Handler
}

// New returns an engine using the given transport.
func New(t Transport, opts Options) *Client {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 4 * time.Second
	}
	if opts.EditWindow <= 0 {
		opts.EditWindow = 2 * time.Minute
	}
	return &Client{
		transport:  t,
		heartbeat:  opts.Heartbeat,
		editWindow: opts.EditWindow,
		now:        time.Now,
		sessions:   make(map[int]*session),
	}
}

// Listen registers the consumer's handler. Call it before Run; events
// observed while no handler is registered are dropped.
func (c *Client) Listen(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// JoinRoom fetches the room's anti-forgery token, performs a priming fetch
// to establish the processed boundary, and adds the room to the polling set.
// Existing history is not replayed as new messages.
//
// Returns chatapi.ErrRoomNotFound when the service reports 404 and
// chatapi.ErrPermissionDenied when the room exists but posting is disallowed;
// neither creates a session.
func (c *Client) JoinRoom(ctx context.Context, roomID int) error {
	if c.joined(roomID) {
		return nil
	}
	page, err := c.transport.FetchRoomPage(ctx, roomID)
	if err != nil {
		return err
	}
	if !page.CanPost {
		return fmt.Errorf("room %d: %w", roomID, chatapi.ErrPermissionDenied)
	}

	// Priming: run the regular fetch with the "never polled" sentinel so the
	// trim keeps only messages inside the edit window, then swallow them.
	view := sessionView{roomID: roomID, fkey: page.FKey}
	batch, err := c.fetchNextBatch(ctx, view)
	if err != nil {
		return fmt.Errorf("room %d: priming fetch: %w", roomID, err)
	}
	s := &session{roomID: roomID, fkey: page.FKey, lastPoll: c.now()}
	if len(batch) > 0 {
		s.lastProcessedID = batch[len(batch)-1].ID
		s.lastBatch = batch
	}

	c.mu.Lock()
	if _, ok := c.sessions[roomID]; !ok {
		c.sessions[roomID] = s
	}
	n := len(c.sessions)
	c.mu.Unlock()
	telemetry.SetRoomsJoined(n)
	return nil
}

// LeaveRoom removes the room from the polling set immediately and then posts
// the quiet leave form. An in-flight cycle for the room notices the removal
// after its current callback and stops without advancing the boundary.
// Leaving a room that was never joined is a no-op.
func (c *Client) LeaveRoom(ctx context.Context, roomID int) error {
	c.mu.Lock()
	s, ok := c.sessions[roomID]
	if ok {
		delete(c.sessions, roomID)
	}
	n := len(c.sessions)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	telemetry.SetRoomsJoined(n)
	return c.transport.LeaveRoom(ctx, roomID, s.fkey)
}

// SendMessage posts pre-split text chunks to a room in order and returns one
// message ID per chunk. Splitting oversized text is the caller's concern.
// On failure the IDs posted so far are returned alongside a SendError.
func (c *Client) SendMessage(ctx context.Context, roomID int, parts ...string) ([]int64, error) {
	c.mu.Lock()
	s, ok := c.sessions[roomID]
	var fkey string
	if ok {
		fkey = s.fkey
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotJoined)
	}

	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := c.transport.PostMessage(ctx, roomID, fkey, part)
		if err != nil {
			return ids, &SendError{RoomID: roomID, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Rooms returns the currently joined room IDs in ascending order.
func (c *Client) Rooms() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.sessions))
	for id := range c.sessions {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// RoomStatus is a point-in-time snapshot of one room's sync state, exposed
// on the ops status endpoint.
type RoomStatus struct {
	RoomID          int       `json:"room_id"`
	LastProcessedID int64     `json:"last_processed_id"`
	LastBatchSize   int       `json:"last_batch_size"`
	LastPoll        time.Time `json:"last_poll"`
}

// Status reports every joined room, ordered by room ID.
func (c *Client) Status() []RoomStatus {
	c.mu.Lock()
	out := make([]RoomStatus, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, RoomStatus{
			RoomID:          s.roomID,
			LastProcessedID: s.lastProcessedID,
			LastBatchSize:   len(s.lastBatch),
			LastPoll:        s.lastPoll,
		})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (c *Client) joined(roomID int) bool {
	c.mu.Lock()
	_, ok := c.sessions[roomID]
	c.mu.Unlock()
	return ok
}

// sessionViews snapshots every session under the lock so the polling cycle
// iterates a stable set even while other goroutines join and leave rooms.
func (c *Client) sessionViews() []sessionView {
	c.mu.Lock()
	views := make([]sessionView, 0, len(c.sessions))
	for _, s := range c.sessions {
		views = append(views, s.view())
	}
	c.mu.Unlock()
	sort.Slice(views, func(i, j int) bool { return views[i].roomID < views[j].roomID })
	return views
}

func (c *Client) currentHandler() Handler {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	return h
}
