package storage

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS news_events (
		id            BIGSERIAL PRIMARY KEY,
		url           TEXT NOT NULL UNIQUE,
		title         TEXT NOT NULL,
		description   TEXT,
		source        TEXT,
		published_at  TIMESTAMPTZ NOT NULL,
		category      TEXT NOT NULL,
		impact_score  DOUBLE PRECISION NOT NULL,
		is_critical   BOOLEAN NOT NULL DEFAULT FALSE,
		summary_pt    TEXT,
		summary_en    TEXT,
		keywords      TEXT[],
		tension_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
		titles        JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tension_samples (
		id         BIGSERIAL PRIMARY KEY,
		value      DOUBLE PRECISION NOT NULL,
		notes      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tension_samples_created_at
		ON tension_samples (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id             BIGSERIAL PRIMARY KEY,
		event_id       BIGINT NOT NULL REFERENCES news_events (id),
		title          TEXT NOT NULL,
		message        TEXT NOT NULL,
		severity       TEXT NOT NULL,
		category       TEXT NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		notified_count INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		id                    BIGSERIAL PRIMARY KEY,
		chat_id               BIGINT NOT NULL DEFAULT 0,
		is_premium            BOOLEAN NOT NULL DEFAULT FALSE,
		notifications_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema. Statements are idempotent, so this runs on
// every startup.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
