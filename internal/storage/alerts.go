package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tickerwatch/alerts-backend/internal/alerts"
)

// ErrNotFound reports a lookup for an alert that does not exist.
var ErrNotFound = errors.New("alert not found")

const alertColumns = `id, symbol, interval, kind, upper_enabled, lower_enabled,
	threshold, indicator_name, indicator_params,
	message, message_upper, message_lower,
	cooldown_seconds, status, last_triggered_at, created_at, updated_at`

// AlertStore is the pgx-backed repository for alert definitions and state.
// It implements alerts.AlertStore.
type AlertStore struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewAlertStore creates the repository.
func NewAlertStore(db *pgxpool.Pool, logger zerolog.Logger) *AlertStore {
	return &AlertStore{
		db:     db,
		logger: logger.With().Str("component", "alert-store").Logger(),
	}
}

// ListActive loads active alerts, optionally filtered to the given series.
// Muted alerts never leave this query, which is what guarantees zero triggers
// are created while muted.
func (s *AlertStore) ListActive(ctx context.Context, series []alerts.Series) ([]*alerts.Alert, error) {
	query, args := buildListActiveQuery(series)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var out []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// buildListActiveQuery expands the optional series filter into a
// (symbol, interval) IN clause.
func buildListActiveQuery(series []alerts.Series) (string, []any) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = 'active'`
	if len(series) == 0 {
		return query, nil
	}

	args := make([]any, 0, len(series)*2)
	pairs := make([]string, 0, len(series))
	for i, s := range series {
		pairs = append(pairs, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
		args = append(args, s.Symbol, s.Interval)
	}
	return query + ` AND (symbol, interval) IN (` + strings.Join(pairs, ", ") + `)`, args
}

// Get loads one alert by id.
func (s *AlertStore) Get(ctx context.Context, id uuid.UUID) (*alerts.Alert, error) {
	row := s.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// Create persists a new alert.
func (s *AlertStore) Create(ctx context.Context, a *alerts.Alert) error {
	var (
		indicatorName   *string
		indicatorParams []byte
	)
	if a.Indicator != nil {
		indicatorName = &a.Indicator.Name
		if len(a.Indicator.Params) > 0 {
			params, err := json.Marshal(a.Indicator.Params)
			if err != nil {
				return fmt.Errorf("marshal indicator params: %w", err)
			}
			indicatorParams = params
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO alerts (
			id, symbol, interval, kind, upper_enabled, lower_enabled,
			threshold, indicator_name, indicator_params,
			message, message_upper, message_lower,
			cooldown_seconds, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		a.ID, a.Series.Symbol, a.Series.Interval, a.Kind.String(),
		a.Directions.Upper, a.Directions.Lower,
		a.Threshold, indicatorName, indicatorParams,
		a.Message, a.MessageUpper, a.MessageLower,
		int(a.Cooldown/time.Second), a.Status.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// UpdateStatus persists a mute/unmute transition.
func (s *AlertStore) UpdateStatus(ctx context.Context, id uuid.UUID, status alerts.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE alerts SET status = $2, updated_at = now() WHERE id = $1`,
		id, status.String(),
	)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes the alert; the alert_triggers FK cascades its history.
func (s *AlertStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanAlert(row pgx.Row) (*alerts.Alert, error) {
	var (
		a               alerts.Alert
		kind            string
		status          string
		threshold       *float64
		indicatorName   *string
		indicatorParams []byte
		cooldownSeconds int
	)
	err := row.Scan(
		&a.ID, &a.Series.Symbol, &a.Series.Interval, &kind,
		&a.Directions.Upper, &a.Directions.Lower,
		&threshold, &indicatorName, &indicatorParams,
		&a.Message, &a.MessageUpper, &a.MessageLower,
		&cooldownSeconds, &status, &a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.Kind, err = alerts.ParseConditionKind(kind); err != nil {
		return nil, fmt.Errorf("scan alert %s: %w", a.ID, err)
	}
	if a.Status, err = alerts.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("scan alert %s: %w", a.ID, err)
	}
	if threshold != nil {
		a.Threshold = *threshold
	}
	if indicatorName != nil {
		ref := alerts.IndicatorRef{Name: *indicatorName}
		if len(indicatorParams) > 0 {
			if err := json.Unmarshal(indicatorParams, &ref.Params); err != nil {
				return nil, fmt.Errorf("unmarshal indicator params for %s: %w", a.ID, err)
			}
		}
		a.Indicator = &ref
	}
	a.Cooldown = time.Duration(cooldownSeconds) * time.Second
	return &a, nil
}
