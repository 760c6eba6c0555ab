package archive

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the message archive.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty archive DSN")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for the archive table.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			room_id INTEGER NOT NULL,
			message_id BIGINT NOT NULL,
			user_id BIGINT,
			user_name TEXT,
			content TEXT,
			fixed_font BOOLEAN DEFAULT FALSE,
			edited BOOLEAN DEFAULT FALSE,
			posted_at TIMESTAMPTZ,
			recorded_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ,
			deleted_at TIMESTAMPTZ,
			UNIQUE (room_id, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_posted ON chat_messages (room_id, posted_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("archive migrate: %w", err)
		}
	}
	return nil
}
