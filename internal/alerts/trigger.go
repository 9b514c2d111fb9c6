package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Trigger is one accepted, persisted firing of an alert's condition. It is
// immutable once created; history is append-only and only removed by
// cascading alert deletion.
type Trigger struct {
	ID          uuid.UUID `json:"id"`
	AlertID     uuid.UUID `json:"alert_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Direction   Direction `json:"direction"`
	Message     string    `json:"message"`

	// Observed values are populated opportunistically and never block
	// trigger creation when one is unavailable.
	ObservedPrice     *float64 `json:"observed_price,omitempty"`
	ObservedIndicator *float64 `json:"observed_indicator,omitempty"`
}

// NewTrigger builds the immutable trigger record for a fired direction,
// resolving the message from the alert's configuration at creation time.
func NewTrigger(a *Alert, dir Direction, obs Observation, now time.Time) Trigger {
	t := Trigger{
		ID:          uuid.New(),
		AlertID:     a.ID,
		TriggeredAt: now.UTC(),
		Direction:   dir,
		Message:     resolveMessage(a, dir),
	}
	if usable(obs.Price.Current) {
		price := obs.Price.Current
		t.ObservedPrice = &price
	}
	if obs.Indicator != nil && usable(obs.Indicator.Current) {
		value := obs.Indicator.Current
		t.ObservedIndicator = &value
	}
	return t
}

func resolveMessage(a *Alert, dir Direction) string {
	switch dir {
	case DirectionUpper:
		return a.MessageUpper
	case DirectionLower:
		return a.MessageLower
	default:
		return a.Message
	}
}
