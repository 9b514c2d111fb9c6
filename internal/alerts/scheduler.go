package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable marks an observation that cannot be produced right now
// (cold series, data gap, indicator warmup). It is non-fatal: the alert is
// skipped this cycle and stays live for the next one.
var ErrUnavailable = errors.New("observation unavailable")

// AlertSource loads the alerts eligible for evaluation. A nil/empty series
// filter means every active alert (the periodic sweep mode). Implementations
// must exclude muted alerts so no trigger can ever be created while muted.
type AlertSource interface {
	ListActive(ctx context.Context, series []Series) ([]*Alert, error)
}

// TriggerSink persists the triggers of one fired alert together with the
// last_triggered_at update, in a single transaction per alert.
type TriggerSink interface {
	CommitFires(ctx context.Context, alertID uuid.UUID, triggers []Trigger, firedAt time.Time) error
}

// ObservationProvider is the external market-data/indicator collaborator.
// It returns ErrUnavailable rather than fabricating readings.
type ObservationProvider interface {
	GetObservation(ctx context.Context, series Series, ref *IndicatorRef) (Observation, error)
}

// PassGuard filters duplicate evaluation passes for the same (alert,
// observation timestamp), e.g. when the same candle close is published twice.
// Begin reports whether this pass may proceed.
type PassGuard interface {
	Begin(ctx context.Context, alertID uuid.UUID, at time.Time) bool
}

// SchedulerConfig tunes one Scheduler. Zero values pick sane defaults.
type SchedulerConfig struct {
	// Workers bounds how many symbol groups evaluate concurrently.
	Workers int
	// CycleTimeout is the per-cycle deadline; groups whose fetch has not
	// completed by then are skipped and retried next cycle.
	CycleTimeout time.Duration
	// Guard is optional; nil disables duplicate-pass filtering.
	Guard PassGuard
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultWorkers      = 8
	defaultCycleTimeout = 30 * time.Second
)

// Scheduler orchestrates evaluation cycles: it groups active alerts by
// series, shares one observation fetch per group, runs the pure evaluator,
// routes fires through the cooldown gate and persists the results. Alerts
// within a group evaluate sequentially; groups run on a bounded pool.
type Scheduler struct {
	alerts   AlertSource
	triggers TriggerSink
	provider ObservationProvider
	guard    PassGuard
	gate     CooldownGate

	workers      int
	cycleTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	lastFire map[uuid.UUID]time.Time
}

// NewScheduler wires a scheduler from its collaborators.
func NewScheduler(alerts AlertSource, triggers TriggerSink, provider ObservationProvider, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		alerts:       alerts,
		triggers:     triggers,
		provider:     provider,
		guard:        cfg.Guard,
		gate:         NewCooldownGate(),
		workers:      cfg.Workers,
		cycleTimeout: cfg.CycleTimeout,
		now:          cfg.Now,
		logger:       logger.With().Str("component", "scheduler").Logger(),
		inflight:     make(map[uuid.UUID]struct{}),
		lastFire:     make(map[uuid.UUID]time.Time),
	}
}

// RunCycle evaluates every active alert watching one of the updated series,
// or all active alerts when updated is empty (sweep mode). It returns the
// triggers created this cycle so the caller can fan out to logging or
// notification. Per-alert failures are logged and isolated; only a failure to
// load the alert set aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context, updated []Series) ([]Trigger, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	active, err := s.alerts.ListActive(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	groups := groupBySeries(active)

	var (
		mu      sync.Mutex
		created []Trigger
	)
	emit := func(ts []Trigger) {
		mu.Lock()
		created = append(created, ts...)
		mu.Unlock()
	}

	// Groups are disjoint in the alerts they touch, so no cross-group
	// synchronization is needed.
	var g errgroup.Group
	g.SetLimit(s.workers)
	for series, group := range groups {
		series, group := series, group
		g.Go(func() error {
			s.evaluateGroup(ctx, series, group, emit)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // group funcs never return errors

	return created, nil
}

func groupBySeries(alerts []*Alert) map[Series][]*Alert {
	groups := make(map[Series][]*Alert)
	for _, a := range alerts {
		groups[a.Series] = append(groups[a.Series], a)
	}
	return groups
}

// evaluateGroup runs one series group. Observations are cached per distinct
// indicator parameters so alerts sharing a series share the fetch.
func (s *Scheduler) evaluateGroup(ctx context.Context, series Series, group []*Alert, emit func([]Trigger)) {
	cache := make(map[string]*Observation, 1)
	for _, a := range group {
		if ctx.Err() != nil {
			s.logger.Warn().
				Str("series", series.String()).
				Int("deferred", len(group)).
				Msg("cycle deadline exceeded, deferring group to next cycle")
			return
		}
		s.evaluateAlert(ctx, a, cache, emit)
	}
}

func (s *Scheduler) evaluateAlert(ctx context.Context, a *Alert, cache map[string]*Observation, emit func([]Trigger)) {
	if !s.acquire(a.ID) {
		s.logger.Debug().Stringer("alert_id", a.ID).Msg("evaluation already in flight, skipping")
		return
	}
	defer s.release(a.ID)

	obs, err := s.observe(ctx, a, cache)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			s.logger.Debug().
				Stringer("alert_id", a.ID).
				Str("series", a.Series.String()).
				Msg("observation unavailable, skipping alert this cycle")
		} else {
			s.logger.Error().Err(err).
				Stringer("alert_id", a.ID).
				Str("series", a.Series.String()).
				Msg("observation fetch failed")
		}
		return
	}

	if s.guard != nil && !s.guard.Begin(ctx, a.ID, obs.At) {
		s.logger.Debug().Stringer("alert_id", a.ID).Time("at", obs.At).
			Msg("duplicate evaluation pass filtered")
		return
	}

	fired := Evaluate(a, *obs)
	if len(fired) == 0 {
		return
	}

	now := s.now()
	s.overlayLastFire(a)
	if !s.gate.Allow(a, now) {
		s.logger.Debug().
			Stringer("alert_id", a.ID).
			Dur("cooldown", a.Cooldown).
			Msg("fire suppressed by cooldown")
		return
	}

	triggers := make([]Trigger, 0, len(fired))
	for _, dir := range fired {
		triggers = append(triggers, NewTrigger(a, dir, *obs, now))
	}

	// An unrecoverable write drops this cycle's fires; level conditions
	// re-fire naturally next cycle, cross conditions are missed once.
	if err := s.triggers.CommitFires(ctx, a.ID, triggers, now); err != nil {
		s.logger.Error().Err(err).
			Stringer("alert_id", a.ID).
			Int("triggers", len(triggers)).
			Msg("trigger persistence failed, dropping fires for this cycle")
		return
	}

	s.gate.RecordFire(a, now)
	s.rememberFire(a.ID, now)
	emit(triggers)

	s.logger.Info().
		Stringer("alert_id", a.ID).
		Str("series", a.Series.String()).
		Str("kind", a.Kind.String()).
		Int("triggers", len(triggers)).
		Msg("alert triggered")
}

func (s *Scheduler) observe(ctx context.Context, a *Alert, cache map[string]*Observation) (*Observation, error) {
	key := observationKey(a)
	if obs, ok := cache[key]; ok {
		return obs, nil
	}
	var ref *IndicatorRef
	if a.Kind.IsBanded() {
		ref = a.Indicator
	}
	obs, err := s.provider.GetObservation(ctx, a.Series, ref)
	if err != nil {
		return nil, err
	}
	cache[key] = &obs
	return &obs, nil
}

func observationKey(a *Alert) string {
	if !a.Kind.IsBanded() || a.Indicator == nil {
		return "price"
	}
	names := make([]string, 0, len(a.Indicator.Params))
	for name := range a.Indicator.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	key := a.Indicator.Name
	for _, name := range names {
		key += fmt.Sprintf("|%s=%g", name, a.Indicator.Params[name])
	}
	return key
}

// overlayLastFire reconciles the cycle's loaded copy with fires this process
// has already committed. Overlapping cycles (an event cycle and the sweep)
// load their alert rows independently, so the later one may hold a stale
// LastTriggeredAt; the in-process record is authoritative.
func (s *Scheduler) overlayLastFire(a *Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastFire[a.ID]; ok && (a.LastTriggeredAt == nil || last.After(*a.LastTriggeredAt)) {
		fired := last
		a.LastTriggeredAt = &fired
	}
}

func (s *Scheduler) rememberFire(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	s.lastFire[id] = at.UTC()
	s.mu.Unlock()
}

func (s *Scheduler) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
