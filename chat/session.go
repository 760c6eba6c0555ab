package chat

import "time"

// session is the engine-private mutable state for one joined room. It is
// only ever touched under Client.mu; network calls work on a sessionView
// copy taken inside the lock.
type session struct {
	roomID int
	// fkey is the cached anti-forgery token. Its lifetime is the login
	// session's, so it is fetched once at join and never refreshed.
	fkey string
	// lastProcessedID is the highest message ID the consumer has seen.
	// 0 is the "never polled" sentinel; it only ever grows after that.
	lastProcessedID int64
	// lastBatch is the result of the most recent successful fetch, kept
	// only for edit-diffing.
	lastBatch []Message
	// lastPoll is the time of the most recent successful fetch, exposed
	// on the status endpoint.
	lastPoll time.Time
}

// sessionView is the read-only snapshot handed to the fetcher and dispatcher
// so no session pointer escapes the lock.
type sessionView struct {
	roomID          int
	fkey            string
	lastProcessedID int64
	lastBatch       []Message
}

func (s *session) view() sessionView {
	return sessionView{
		roomID:          s.roomID,
		fkey:            s.fkey,
		lastProcessedID: s.lastProcessedID,
		lastBatch:       s.lastBatch,
	}
}
