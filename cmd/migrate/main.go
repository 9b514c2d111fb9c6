package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	log.Println("Connected to database, running migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			kind TEXT NOT NULL,
			upper_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			lower_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			threshold DOUBLE PRECISION,
			indicator_name TEXT,
			indicator_params JSONB,
			message TEXT NOT NULL DEFAULT '',
			message_upper TEXT NOT NULL DEFAULT '',
			message_lower TEXT NOT NULL DEFAULT '',
			cooldown_seconds INTEGER NOT NULL DEFAULT 60,
			status TEXT NOT NULL DEFAULT 'active',
			last_triggered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT alerts_status_check CHECK (status IN ('active', 'muted')),
			CONSTRAINT alerts_cooldown_check CHECK (cooldown_seconds >= 5)
		)`,
		`CREATE INDEX IF NOT EXISTS alerts_series_idx ON alerts (symbol, interval) WHERE status = 'active'`,
		`CREATE TABLE IF NOT EXISTS alert_triggers (
			id UUID PRIMARY KEY,
			alert_id UUID NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
			triggered_at TIMESTAMPTZ NOT NULL,
			direction TEXT NOT NULL DEFAULT 'none',
			message TEXT NOT NULL,
			observed_price DOUBLE PRECISION,
			observed_indicator DOUBLE PRECISION,
			CONSTRAINT alert_triggers_direction_check CHECK (direction IN ('none', 'upper', 'lower'))
		)`,
		`CREATE INDEX IF NOT EXISTS alert_triggers_recent_idx ON alert_triggers (triggered_at DESC)`,
		`CREATE INDEX IF NOT EXISTS alert_triggers_alert_idx ON alert_triggers (alert_id, triggered_at)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	log.Println("All migrations completed")
}
