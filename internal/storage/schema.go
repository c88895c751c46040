package storage

import (
	"context"
	"fmt"
)

// schema is the subscriber table DDL, applied idempotently on startup.
// Unsubscribed rows are kept, not deleted; unsubscription is a state change.
const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
    id                 UUID PRIMARY KEY,
    email              TEXT NOT NULL,
    first_name         TEXT NOT NULL DEFAULT '',
    language           TEXT NOT NULL DEFAULT 'fr',
    state              TEXT NOT NULL DEFAULT 'pending',
    confirmation_token TEXT NOT NULL DEFAULT '',
    token_expires_at   TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    confirmed_at       TIMESTAMPTZ,
    unsubscribed_at    TIMESTAMPTZ,
    CONSTRAINT subscribers_state_check
        CHECK (state IN ('pending', 'active', 'unsubscribed'))
);

CREATE UNIQUE INDEX IF NOT EXISTS subscribers_email_key
    ON subscribers (email);

CREATE INDEX IF NOT EXISTS subscribers_token_idx
    ON subscribers (confirmation_token)
    WHERE confirmation_token <> '';

CREATE INDEX IF NOT EXISTS subscribers_state_language_idx
    ON subscribers (state, language);
`

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
