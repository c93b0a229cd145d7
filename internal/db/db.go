package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the postgres pool and applies migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('direct', 'group')),
            direct_key TEXT,
            group_name TEXT,
            group_description TEXT,
            group_avatar TEXT,
            related_activity_id TEXT,
            last_message_id TEXT,
            last_message_at TIMESTAMPTZ,
            message_seq BIGINT NOT NULL DEFAULT 0,
            version BIGINT NOT NULL DEFAULT 0,
            created_by TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chats_active_direct_key_idx ON chats (direct_key) WHERE is_active;`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member',
            position BIGSERIAL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            last_read_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            muted BOOLEAN NOT NULL DEFAULT FALSE,
            PRIMARY KEY (chat_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS chat_participants_user_idx ON chat_participants (user_id);`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            seq BIGINT NOT NULL,
            sender_id TEXT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL DEFAULT 'text',
            file_url TEXT NOT NULL DEFAULT '',
            client_message_id TEXT,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            UNIQUE (chat_id, seq)
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_messages_client_id_idx ON chat_messages (chat_id, client_message_id)
            WHERE client_message_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS message_reads (
            message_id TEXT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            read_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            PRIMARY KEY (message_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS direct_messages (
            id TEXT PRIMARY KEY,
            from_user_id TEXT NOT NULL,
            to_user_id TEXT NOT NULL,
            text TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS direct_messages_pair_idx ON direct_messages (from_user_id, to_user_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS direct_messages_unread_idx ON direct_messages (to_user_id, is_read);`,
	// direct_key is "<byte length of lower id>:<lower id>|<higher id>" in byte order.
	// Rows keyed before the length prefix are rebuilt from their roster.
	`UPDATE chats c SET direct_key = octet_length(p.lo)::text || ':' || p.lo || '|' || p.hi
        FROM (SELECT chat_id, min(user_id COLLATE "C") AS lo, max(user_id COLLATE "C") AS hi
              FROM chat_participants GROUP BY chat_id HAVING count(*) = 2) p
        WHERE c.id = p.chat_id AND c.type = 'direct'
          AND c.direct_key IS DISTINCT FROM octet_length(p.lo)::text || ':' || p.lo || '|' || p.hi;`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	slog.Info("database migrations applied", "count", len(migrations))
	return nil
}
