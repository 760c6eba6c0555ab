// Package archive is an optional consumer of the sync engine that persists
// observed messages to Postgres. The engine itself keeps no durable state;
// this package is just a chat.Handler plugged in when DB_DSN is set.
package archive

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/onnwee/stackchat/chat"
)

// Recorder stores new messages and applies edits. It implements chat.Handler.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a Recorder writing to db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// OnMessage inserts a newly observed message. Conflicts are ignored so a
// re-primed room after restart doesn't duplicate rows.
func (r *Recorder) OnMessage(m chat.Message) {
	_, err := r.db.ExecContext(context.Background(), `INSERT INTO chat_messages
		(room_id, message_id, user_id, user_name, content, fixed_font, posted_at, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (room_id, message_id) DO NOTHING`,
		m.RoomID, m.ID, m.UserID, m.UserName, m.Content, m.FixedFont, m.Timestamp)
	if err != nil {
		slog.Error("failed to insert chat message", slog.Int("room_id", m.RoomID), slog.Int64("message_id", m.ID), slog.Any("err", err))
	}
}

// OnMessageEdited updates the stored content. An empty content means the
// message was deleted; the row is kept with deleted_at set.
func (r *Recorder) OnMessageEdited(m chat.Message) {
	var deletedAt any
	if m.Content == "" {
		deletedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(context.Background(), `UPDATE chat_messages
		SET content=$1, edited=TRUE, deleted_at=$2, updated_at=NOW()
		WHERE room_id=$3 AND message_id=$4`,
		m.Content, deletedAt, m.RoomID, m.ID)
	if err != nil {
		slog.Error("failed to update chat message", slog.Int("room_id", m.RoomID), slog.Int64("message_id", m.ID), slog.Any("err", err))
	}
}

// OnError only logs; a fetch failure is not the archive's problem to solve.
func (r *Recorder) OnError(roomID int, err error) {
	slog.Warn("room sync error", slog.Int("room_id", roomID), slog.Any("err", err))
}
