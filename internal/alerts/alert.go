package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MinCooldown is the hard floor enforced regardless of configuration.
	MinCooldown = 5 * time.Second
	// DefaultCooldown applies when an alert is created without one.
	DefaultCooldown = 60 * time.Second
)

// Series identifies one market-data time series, e.g. ("BTCUSDT", "1m").
type Series struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

func (s Series) String() string {
	return s.Symbol + ":" + s.Interval
}

// ConditionKind is the closed vocabulary of alert conditions.
type ConditionKind int8

const (
	KindUnknown ConditionKind = iota
	KindPriceAbove
	KindPriceBelow
	KindPriceCrossUp
	KindPriceCrossDown
	KindIndicatorAbove
	KindIndicatorBelow
	KindIndicatorCrossUp
	KindIndicatorCrossDown
)

var kindNames = map[ConditionKind]string{
	KindPriceAbove:         "price_above",
	KindPriceBelow:         "price_below",
	KindPriceCrossUp:       "price_cross_up",
	KindPriceCrossDown:     "price_cross_down",
	KindIndicatorAbove:     "indicator_above",
	KindIndicatorBelow:     "indicator_below",
	KindIndicatorCrossUp:   "indicator_cross_up",
	KindIndicatorCrossDown: "indicator_cross_down",
}

func (k ConditionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseConditionKind maps the stored string form back to a ConditionKind.
func ParseConditionKind(s string) (ConditionKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown condition kind %q", s)
}

// IsPrice reports whether the kind watches the price series directly.
func (k ConditionKind) IsPrice() bool {
	switch k {
	case KindPriceAbove, KindPriceBelow, KindPriceCrossUp, KindPriceCrossDown:
		return true
	}
	return false
}

// IsBanded reports whether the kind evaluates an indicator against its bands.
func (k ConditionKind) IsBanded() bool {
	return k != KindUnknown && !k.IsPrice()
}

// Direction labels which band a trigger fired on. Price alerts are
// non-directional and record DirectionNone.
type Direction int8

const (
	DirectionNone Direction = iota
	DirectionUpper
	DirectionLower
)

func (d Direction) String() string {
	switch d {
	case DirectionUpper:
		return "upper"
	case DirectionLower:
		return "lower"
	default:
		return "none"
	}
}

// ParseDirection maps the stored string form back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "upper":
		return DirectionUpper, nil
	case "lower":
		return DirectionLower, nil
	case "none", "":
		return DirectionNone, nil
	}
	return DirectionNone, fmt.Errorf("unknown direction %q", s)
}

// DirectionSet records which band directions an alert has enabled.
type DirectionSet struct {
	Upper bool
	Lower bool
}

// Any reports whether at least one direction is enabled.
func (ds DirectionSet) Any() bool {
	return ds.Upper || ds.Lower
}

// Enabled reports whether the given direction is enabled.
func (ds DirectionSet) Enabled(d Direction) bool {
	switch d {
	case DirectionUpper:
		return ds.Upper
	case DirectionLower:
		return ds.Lower
	}
	return false
}

// IndicatorRef names the indicator an alert watches plus its parameters.
// Band levels come from the indicator's output, never from the alert itself.
type IndicatorRef struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Param returns the named parameter or the given default.
func (r IndicatorRef) Param(name string, def float64) float64 {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return def
}

// Status is the complete persisted state space of an alert. A fired trigger
// is an event, not a state; last_triggered_at is its only trace.
type Status int8

const (
	StatusActive Status = iota
	StatusMuted
)

func (s Status) String() string {
	if s == StatusMuted {
		return "muted"
	}
	return "active"
}

// ParseStatus maps the stored string form back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "muted":
		return StatusMuted, nil
	}
	return StatusActive, fmt.Errorf("unknown status %q", s)
}

// Alert is one user-defined condition plus its runtime state.
type Alert struct {
	ID         uuid.UUID
	Series     Series
	Kind       ConditionKind
	Directions DirectionSet

	// Threshold applies to price kinds; Indicator to banded kinds.
	Threshold float64
	Indicator *IndicatorRef

	// Message is the single text for non-directional price alerts;
	// MessageUpper/MessageLower per enabled direction for banded alerts.
	Message      string
	MessageUpper string
	MessageLower string

	Cooldown        time.Duration
	Status          Status
	LastTriggeredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the alert participates in evaluation.
func (a *Alert) Active() bool {
	return a.Status == StatusActive
}

// Mute transitions active → muted. Muting an already-muted alert is a no-op;
// the return value reports whether the status changed.
func (a *Alert) Mute() bool {
	if a.Status == StatusMuted {
		return false
	}
	a.Status = StatusMuted
	return true
}

// Unmute transitions muted → active. Evaluation resumes from the next cycle
// with no catch-up of missed cycles.
func (a *Alert) Unmute() bool {
	if a.Status == StatusActive {
		return false
	}
	a.Status = StatusActive
	return true
}

// ValidationError rejects a malformed alert at creation time, before it can
// ever reach the evaluator.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s %s", e.Field, e.Reason)
}

// Validate checks the configuration invariants.
func (a *Alert) Validate() error {
	if a.Series.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if a.Series.Interval == "" {
		return &ValidationError{Field: "interval", Reason: "must not be empty"}
	}
	if _, ok := kindNames[a.Kind]; !ok {
		return &ValidationError{Field: "kind", Reason: "must be a known condition kind"}
	}
	if a.Cooldown < MinCooldown {
		return &ValidationError{Field: "cooldown", Reason: fmt.Sprintf("must be at least %s", MinCooldown)}
	}

	if a.Kind.IsPrice() {
		if strings.TrimSpace(a.Message) == "" {
			return &ValidationError{Field: "message", Reason: "must not be empty"}
		}
		return nil
	}

	if a.Indicator == nil || a.Indicator.Name == "" {
		return &ValidationError{Field: "indicator", Reason: "must name an indicator"}
	}
	if !a.Directions.Any() {
		return &ValidationError{Field: "directions", Reason: "must enable at least one of upper/lower"}
	}
	if a.Directions.Upper && strings.TrimSpace(a.MessageUpper) == "" {
		return &ValidationError{Field: "message_upper", Reason: "must not be empty when upper is enabled"}
	}
	if a.Directions.Lower && strings.TrimSpace(a.MessageLower) == "" {
		return &ValidationError{Field: "message_lower", Reason: "must not be empty when lower is enabled"}
	}
	switch a.Kind {
	case KindIndicatorAbove:
		if !a.Directions.Upper {
			return &ValidationError{Field: "directions", Reason: "indicator_above requires upper enabled"}
		}
	case KindIndicatorBelow:
		if !a.Directions.Lower {
			return &ValidationError{Field: "directions", Reason: "indicator_below requires lower enabled"}
		}
	}
	return nil
}
