package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client talks to one chat service (e.g. https://chat.stackoverflow.com).
// The zero HTTPClient falls back to http.DefaultClient, so tests can inject
// an httptest server transport.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient returns a Client for the given chat service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		sleep:   sleepCtx,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Event is one message record as returned by the events endpoint. A deleted
// message keeps its ID but loses its content field.
type Event struct {
	Content   string `json:"content"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	RoomID    int    `json:"room_id"`
	MessageID int64  `json:"message_id"`
	TimeStamp int64  `json:"time_stamp"`
}

// RoomPage is what we need from a room's HTML page: the anti-forgery token
// and whether the current session may post. The token's lifetime is the
// login session's, not the room's, so callers cache it for the process.
type RoomPage struct {
	FKey    string
	CanPost bool
}

var fkeyRe = regexp.MustCompile(`name="fkey"[^>]*value="([^"]+)"`)

// The room page only renders the message input box when posting is allowed.
var inputBoxRe = regexp.MustCompile(`<textarea[^>]*id="input"`)

// FetchRoomPage loads the room page and scrapes the fkey out of the HTML.
// Returns ErrRoomNotFound for a 404 and an error when no token is present
// (the page layout changed or we got something that isn't a room page).
func (c *Client) FetchRoomPage(ctx context.Context, roomID int) (*RoomPage, error) {
	op := fmt.Sprintf("GET room %d page", roomID)
	resp, err := c.execute(ctx, op, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s/rooms/%d", c.BaseURL, roomID), nil)
	}, execOptions{accept: []int{http.StatusOK}})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrRoomNotFound)
	}
	m := fkeyRe.FindSubmatch(resp.Body)
	if m == nil {
		return nil, fmt.Errorf("room %d: fkey not found in room page", roomID)
	}
	return &RoomPage{
		FKey:    string(m[1]),
		CanPost: inputBoxRe.Match(resp.Body),
	}, nil
}

// Messages retrieves the count most recent messages for a room, ordered
// oldest first.
func (c *Client) Messages(ctx context.Context, roomID int, fkey string, count int) ([]Event, error) {
	op := fmt.Sprintf("fetch %d messages from room %d", count, roomID)
	form := url.Values{
		"mode":     {"messages"},
		"msgCount": {strconv.Itoa(count)},
		"fkey":     {fkey},
	}
	resp, err := c.execute(ctx, op, func() (*http.Request, error) {
		return c.formRequest(fmt.Sprintf("%s/chats/%d/events", c.BaseURL, roomID), form)
	}, execOptions{accept: []int{http.StatusOK}, wantJSON: true})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrRoomNotFound)
	}
	var body struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("room %d: decode events: %w", roomID, err)
	}
	events := body.Events
	sort.Slice(events, func(i, j int) bool { return events[i].MessageID < events[j].MessageID })
	return events, nil
}

// PostMessage posts text to a room and returns the new message's ID. A 404
// here means the room is gone or posting is forbidden; the service does not
// distinguish, so it surfaces as ErrPermissionDenied.
func (c *Client) PostMessage(ctx context.Context, roomID int, fkey, text string) (int64, error) {
	op := fmt.Sprintf("post message to room %d", roomID)
	form := url.Values{
		"text": {text},
		"fkey": {fkey},
	}
	resp, err := c.execute(ctx, op, func() (*http.Request, error) {
		return c.formRequest(fmt.Sprintf("%s/chats/%d/messages/new", c.BaseURL, roomID), form)
	}, execOptions{accept: []int{http.StatusOK}, wantJSON: true})
	if err != nil {
		return 0, err
	}
	if resp.Status == http.StatusNotFound {
		return 0, fmt.Errorf("room %d: %w", roomID, ErrPermissionDenied)
	}
	var body struct {
		ID   int64 `json:"id"`
		Time int64 `json:"time"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0, fmt.Errorf("room %d: decode post response: %w", roomID, err)
	}
	return body.ID, nil
}

// LeaveRoom posts the quiet leave form. A 404 is ignored: the room being
// gone is as left as it gets.
func (c *Client) LeaveRoom(ctx context.Context, roomID int, fkey string) error {
	op := fmt.Sprintf("leave room %d", roomID)
	form := url.Values{
		"quiet": {"true"},
		"fkey":  {fkey},
	}
	_, err := c.execute(ctx, op, func() (*http.Request, error) {
		return c.formRequest(fmt.Sprintf("%s/chats/leave/%d", c.BaseURL, roomID), form)
	}, execOptions{accept: []int{http.StatusOK}})
	return err
}

func (c *Client) formRequest(rawURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
