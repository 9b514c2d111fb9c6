package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tickerwatch/alerts-backend/internal/alerts"
)

// TriggerStore is the append-only pgx repository for trigger records. It
// implements alerts.TriggerSink and alerts.TriggerLog. Rows are never updated
// or deleted here; the only removal path is the FK cascade on alert deletion.
type TriggerStore struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewTriggerStore creates the repository.
func NewTriggerStore(db *pgxpool.Pool, logger zerolog.Logger) *TriggerStore {
	return &TriggerStore{
		db:     db,
		logger: logger.With().Str("component", "trigger-store").Logger(),
	}
}

// CommitFires inserts the cycle's triggers for one alert and advances
// last_triggered_at in a single transaction, so a trigger can never be
// recorded without its cooldown update or vice versa. One transaction per
// alert: a failed write for one alert never blocks its siblings.
func (s *TriggerStore) CommitFires(ctx context.Context, alertID uuid.UUID, triggers []alerts.Trigger, firedAt time.Time) error {
	if len(triggers) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trigger transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range triggers {
		_, err := tx.Exec(ctx, `
			INSERT INTO alert_triggers (
				id, alert_id, triggered_at, direction, message,
				observed_price, observed_indicator
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.AlertID, t.TriggeredAt, t.Direction.String(), t.Message,
			t.ObservedPrice, t.ObservedIndicator,
		)
		if err != nil {
			return fmt.Errorf("insert trigger %s: %w", t.ID, err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE alerts SET last_triggered_at = $2, updated_at = now() WHERE id = $1`,
		alertID, firedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update last_triggered_at: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trigger transaction: %w", err)
	}

	s.logger.Debug().
		Stringer("alert_id", alertID).
		Int("count", len(triggers)).
		Msg("triggers persisted")
	return nil
}

// ListForAlert returns the alert's full trigger history in chronological
// order.
func (s *TriggerStore) ListForAlert(ctx context.Context, alertID uuid.UUID) ([]alerts.Trigger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, alert_id, triggered_at, direction, message, observed_price, observed_indicator
		FROM alert_triggers
		WHERE alert_id = $1
		ORDER BY triggered_at ASC`,
		alertID,
	)
	if err != nil {
		return nil, fmt.Errorf("query alert triggers: %w", err)
	}
	defer rows.Close()
	return scanTriggers(rows)
}

// ListRecent returns the global trigger log, strictly newest first.
func (s *TriggerStore) ListRecent(ctx context.Context, limit, offset int) ([]alerts.Trigger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, alert_id, triggered_at, direction, message, observed_price, observed_indicator
		FROM alert_triggers
		ORDER BY triggered_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent triggers: %w", err)
	}
	defer rows.Close()
	return scanTriggers(rows)
}

func scanTriggers(rows pgx.Rows) ([]alerts.Trigger, error) {
	var out []alerts.Trigger
	for rows.Next() {
		var (
			t         alerts.Trigger
			direction string
		)
		if err := rows.Scan(&t.ID, &t.AlertID, &t.TriggeredAt, &direction, &t.Message,
			&t.ObservedPrice, &t.ObservedIndicator); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		dir, err := alerts.ParseDirection(direction)
		if err != nil {
			return nil, fmt.Errorf("scan trigger %s: %w", t.ID, err)
		}
		t.Direction = dir
		out = append(out, t)
	}
	return out, rows.Err()
}
