package chat

import (
	"github.com/onnwee/stackchat/telemetry"
)

// dispatch walks a freshly fetched batch in ascending ID order, classifies
// each message against the session snapshot, and invokes the consumer's
// callbacks. Anything above the processed boundary is new; anything at or
// below it is diffed by content against the previous batch, which also
// catches deletions (content going empty) and undeletions.
//
// A callback may leave the room. When that happens the rest of the batch is
// skipped and the session is not updated, so nothing from this cycle is
// marked processed.
func (c *Client) dispatch(view sessionView, batch []Message) {
	handler := c.currentHandler()
	for _, m := range batch {
		if m.ID > view.lastProcessedID {
			telemetry.IncMessagesNew()
			if handler != nil {
				handler.OnMessage(m)
			}
		} else {
			prev, ok := findByID(view.lastBatch, m.ID)
			if !ok || prev.Content == m.Content {
				continue
			}
			telemetry.IncMessagesEdited()
			if handler != nil {
				handler.OnMessageEdited(m)
			}
		}
		if !c.joined(view.roomID) {
			return
		}
	}

	c.mu.Lock()
	if s, ok := c.sessions[view.roomID]; ok {
		if n := len(batch); n > 0 && batch[n-1].ID > s.lastProcessedID {
			s.lastProcessedID = batch[n-1].ID
		}
		s.lastBatch = batch
		s.lastPoll = c.now()
	}
	c.mu.Unlock()
}

// findByID is a linear scan. Batches are at most a few dozen messages; a
// lookup table would be more machinery than the data justifies.
func findByID(batch []Message, id int64) (Message, bool) {
	for _, m := range batch {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}
