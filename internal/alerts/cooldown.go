package alerts

import "time"

// CooldownGate decides whether a fired condition may produce triggers. It
// applies to the alert as a whole, not per direction: the scheduler checks it
// once per cycle, so a cycle that fires both bands is accepted in full before
// the gate closes.
//
// The gate has no mute awareness; muted alerts are filtered out before
// evaluation ever runs.
type CooldownGate struct {
	// Floor is the minimum cooldown enforced regardless of configuration.
	Floor time.Duration
}

// NewCooldownGate returns a gate with the standard floor.
func NewCooldownGate() CooldownGate {
	return CooldownGate{Floor: MinCooldown}
}

// Allow reports whether the alert's cooldown window has elapsed.
func (g CooldownGate) Allow(a *Alert, now time.Time) bool {
	if a.LastTriggeredAt == nil {
		return true
	}
	cd := a.Cooldown
	if cd < g.Floor {
		cd = g.Floor
	}
	return now.Sub(*a.LastTriggeredAt) >= cd
}

// RecordFire closes the gate as of now. The persisted last_triggered_at is
// written transactionally with the trigger rows; this keeps the in-memory
// alert consistent for the rest of the process lifetime.
func (g CooldownGate) RecordFire(a *Alert, now time.Time) {
	t := now.UTC()
	a.LastTriggeredAt = &t
}
