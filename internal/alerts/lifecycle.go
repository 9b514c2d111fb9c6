package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertStore is the persistence surface for alert definitions and state.
type AlertStore interface {
	AlertSource
	Get(ctx context.Context, id uuid.UUID) (*Alert, error)
	Create(ctx context.Context, a *Alert) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TriggerLog is the read side of trigger history: per-alert chronological
// history and a global reverse-chronological log.
type TriggerLog interface {
	ListForAlert(ctx context.Context, alertID uuid.UUID) ([]Trigger, error)
	ListRecent(ctx context.Context, limit, offset int) ([]Trigger, error)
}

// Lifecycle exposes the plain CRUD operations around the engine: create with
// validation, mute/unmute state transitions, delete (which cascades to the
// alert's triggers at the storage layer) and history reads. None of this is
// on the evaluation hot path.
type Lifecycle struct {
	store  AlertStore
	log    TriggerLog
	logger zerolog.Logger
}

// NewLifecycle wires the lifecycle operations.
func NewLifecycle(store AlertStore, log TriggerLog, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		log:    log,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Create validates and persists a new alert. Missing ID, cooldown and
// timestamps are filled in; new alerts start active.
func (l *Lifecycle) Create(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Cooldown == 0 {
		a.Cooldown = DefaultCooldown
	}
	a.Status = StatusActive
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := a.Validate(); err != nil {
		return err
	}
	if err := l.store.Create(ctx, a); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	l.logger.Info().
		Stringer("alert_id", a.ID).
		Str("series", a.Series.String()).
		Str("kind", a.Kind.String()).
		Msg("alert created")
	return nil
}

// Mute suspends evaluation of the alert, preserving its history. Idempotent.
func (l *Lifecycle) Mute(ctx context.Context, id uuid.UUID) error {
	return l.transition(ctx, id, (*Alert).Mute)
}

// Unmute resumes evaluation from the next cycle, with no catch-up of cycles
// missed while muted. Idempotent.
func (l *Lifecycle) Unmute(ctx context.Context, id uuid.UUID) error {
	return l.transition(ctx, id, (*Alert).Unmute)
}

func (l *Lifecycle) transition(ctx context.Context, id uuid.UUID, apply func(*Alert) bool) error {
	a, err := l.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load alert: %w", err)
	}
	if !apply(a) {
		return nil
	}
	if err := l.store.UpdateStatus(ctx, id, a.Status); err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	l.logger.Info().Stringer("alert_id", id).Str("status", a.Status.String()).Msg("alert status changed")
	return nil
}

// Delete removes the alert terminally from any state; its trigger history
// goes with it.
func (l *Lifecycle) Delete(ctx context.Context, id uuid.UUID) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	l.logger.Info().Stringer("alert_id", id).Msg("alert deleted")
	return nil
}

// History returns the alert's triggers in chronological order.
func (l *Lifecycle) History(ctx context.Context, id uuid.UUID) ([]Trigger, error) {
	return l.log.ListForAlert(ctx, id)
}

// RecentLog returns the global trigger log, newest first.
func (l *Lifecycle) RecentLog(ctx context.Context, limit, offset int) ([]Trigger, error) {
	return l.log.ListRecent(ctx, limit, offset)
}
