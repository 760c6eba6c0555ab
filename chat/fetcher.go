package chat

import (
	"context"
)

// initialFetchCount is the starting request size for a poll cycle. The
// service only exposes "most recent N messages", so the fetcher doubles N
// until the batch reaches back far enough; the doubling bounds the worst
// case at O(log backlog) requests.
const initialFetchCount = 10

// fetchNextBatch retrieves, in chronological order, every message newer than
// the session's processed boundary plus anything still inside the edit
// window. The batch is complete when its oldest message is both older than
// the window start (time boundary) and at-or-below the processed boundary
// (id boundary), or when the room's entire history has been returned.
func (c *Client) fetchNextBatch(ctx context.Context, view sessionView) ([]Message, error) {
	windowStart := c.now().Add(-c.editWindow)
	count := initialFetchCount
	var batch []Message
	for {
		events, err := c.transport.Messages(ctx, view.roomID, view.fkey, count)
		if err != nil {
			return nil, err
		}
		batch = messagesFromEvents(events)
		if len(batch) < count {
			// The room has no more history to reach back into.
			break
		}
		oldest := batch[0]
		timeBoundary := oldest.Timestamp.Before(windowStart)
		idBoundary := view.lastProcessedID == 0 || oldest.ID <= view.lastProcessedID
		if timeBoundary && idBoundary {
			break
		}
		count *= 2
	}

	// Drop leading messages that can neither be new nor still editable. On a
	// priming fetch (sentinel boundary) everything outside the edit window
	// goes: it is pre-existing history, not news.
	i := 0
	if view.lastProcessedID == 0 {
		for i < len(batch) && batch[i].Timestamp.Before(windowStart) {
			i++
		}
	} else {
		for i < len(batch) && batch[i].Timestamp.Before(windowStart) && batch[i].ID <= view.lastProcessedID {
			i++
		}
	}
	return batch[i:], nil
}
