package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		title          TEXT NOT NULL,
		message        TEXT NOT NULL,
		type           TEXT NOT NULL,
		reference_id   TEXT,
		reference_type TEXT,
		channels       TEXT[] NOT NULL
			CHECK (cardinality(channels) > 0
				AND channels <@ ARRAY['email', 'sms', 'whatsapp', 'push']::TEXT[]),
		status         TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
		scheduled_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_due
		ON notifications (scheduled_at, id) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		endpoint   TEXT NOT NULL,
		p256dh     TEXT NOT NULL,
		auth       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, endpoint)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user ON push_subscriptions (user_id)`,
}

// Migrate creates the tables and indexes owned by the dispatcher.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
