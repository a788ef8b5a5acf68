package db

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate can run on every deploy.
const schema = `
CREATE TABLE IF NOT EXISTS signals (
    id                TEXT PRIMARY KEY,
    severity          TEXT NOT NULL,
    domain            TEXT NOT NULL,
    scope             TEXT NOT NULL,
    source            TEXT NOT NULL DEFAULT '',
    content           TEXT NOT NULL,
    data              JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL,
    expires_at        TIMESTAMPTZ,
    acknowledged_by   TEXT[] NOT NULL DEFAULT '{}',
    response_required BOOLEAN NOT NULL DEFAULT FALSE,
    resolved          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_signals_live
    ON signals (created_at DESC)
    WHERE NOT resolved;

CREATE TABLE IF NOT EXISTS consumer_profiles (
    consumer_id       TEXT PRIMARY KEY,
    primary_domains   TEXT[] NOT NULL DEFAULT '{}',
    secondary_domains TEXT[] NOT NULL DEFAULT '{}',
    tiers             TEXT[] NOT NULL DEFAULT '{}',
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the signals and consumer_profiles tables if they do not
// already exist.
func (m *Manager) Migrate(ctx context.Context) error {
	migrateCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()

	if _, err := m.db.ExecContext(migrateCtx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
