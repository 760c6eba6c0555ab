package chatapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRoomNotFound is returned when the service reports 404 for a room.
var ErrRoomNotFound = errors.New("room not found")

// ErrPermissionDenied is returned when a room exists but posting to it is
// not allowed for the current session.
var ErrPermissionDenied = errors.New("posting not permitted in room")

// RequestError is the terminal failure produced when the executor exhausts
// its attempt budget. It names the operation and the attempt count so log
// lines stay useful without the caller unwrapping anything.
type RequestError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsTransient reports whether an error looks like a momentary transport
// failure worth retrying: connection resets, handshake failures, timeouts,
// truncated bodies. Unknown errors are treated as transient so a flaky
// gateway doesn't permanently wedge the poller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())

	fatalPatterns := []string{
		"unsupported protocol",
		"invalid url",
		"malformed url",
	}
	for _, pattern := range fatalPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	transientPatterns := []string{
		"connection reset",
		"connection refused",
		"connection timed out",
		"timeout",
		"handshake failure",
		"tls handshake",
		"temporary failure in name resolution",
		"no route to host",
		"network unreachable",
		"eof",
		"broken pipe",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return true
}
