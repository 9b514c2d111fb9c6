package alerts

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAlertStore struct {
	byID          map[uuid.UUID]*Alert
	statusUpdates int
}

func newMemAlertStore(as ...*Alert) *memAlertStore {
	s := &memAlertStore{byID: make(map[uuid.UUID]*Alert)}
	for _, a := range as {
		s.byID[a.ID] = a
	}
	return s
}

func (s *memAlertStore) ListActive(_ context.Context, _ []Series) ([]*Alert, error) {
	var out []*Alert
	for _, a := range s.byID {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAlertStore) Get(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrUnavailable
	}
	copied := *a
	return &copied, nil
}

func (s *memAlertStore) Create(_ context.Context, a *Alert) error {
	s.byID[a.ID] = a
	return nil
}

func (s *memAlertStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	s.byID[id].Status = status
	s.statusUpdates++
	return nil
}

func (s *memAlertStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.byID, id)
	return nil
}

// memTriggerLog mirrors the store's read contract: per-alert history sorted
// chronologically, the global log newest first.
type memTriggerLog struct {
	byAlert map[uuid.UUID][]Trigger
}

func (l *memTriggerLog) append(ts ...Trigger) {
	for _, t := range ts {
		l.byAlert[t.AlertID] = append(l.byAlert[t.AlertID], t)
	}
}

func (l *memTriggerLog) ListForAlert(_ context.Context, alertID uuid.UUID) ([]Trigger, error) {
	out := append([]Trigger(nil), l.byAlert[alertID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.Before(out[j].TriggeredAt) })
	return out, nil
}

func (l *memTriggerLog) ListRecent(_ context.Context, limit, offset int) ([]Trigger, error) {
	var out []Trigger
	for _, ts := range l.byAlert {
		out = append(out, ts...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newLifecycle(store *memAlertStore, log *memTriggerLog) *Lifecycle {
	if log == nil {
		log = &memTriggerLog{byAlert: make(map[uuid.UUID][]Trigger)}
	}
	return NewLifecycle(store, log, zerolog.Nop())
}

func TestLifecycleCreateFillsDefaults(t *testing.T) {
	store := newMemAlertStore()
	lc := newLifecycle(store, nil)

	a := &Alert{
		Series:  Series{Symbol: "BTCUSDT", Interval: "1m"},
		Kind:    KindPriceAbove,
		Message: "BTC over threshold",
	}
	require.NoError(t, lc.Create(context.Background(), a))

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, DefaultCooldown, a.Cooldown)
	assert.Equal(t, StatusActive, a.Status)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Contains(t, store.byID, a.ID)
}

func TestLifecycleCreateRejectsInvalid(t *testing.T) {
	store := newMemAlertStore()
	lc := newLifecycle(store, nil)

	a := &Alert{
		Series: Series{Symbol: "BTCUSDT", Interval: "1m"},
		Kind:   KindPriceAbove,
		// Message missing.
	}
	err := lc.Create(context.Background(), a)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message", verr.Field)
	assert.Empty(t, store.byID)
}

func TestLifecycleMuteUnmute(t *testing.T) {
	a := &Alert{
		ID:       uuid.New(),
		Series:   Series{Symbol: "ETHUSDT", Interval: "5m"},
		Kind:     KindPriceBelow,
		Message:  "ETH under threshold",
		Cooldown: MinCooldown,
		Status:   StatusActive,
	}
	store := newMemAlertStore(a)
	lc := newLifecycle(store, nil)
	ctx := context.Background()

	require.NoError(t, lc.Mute(ctx, a.ID))
	assert.Equal(t, StatusMuted, store.byID[a.ID].Status)
	assert.Equal(t, 1, store.statusUpdates)

	// Muting again is a no-op and skips the write.
	require.NoError(t, lc.Mute(ctx, a.ID))
	assert.Equal(t, 1, store.statusUpdates)

	require.NoError(t, lc.Unmute(ctx, a.ID))
	assert.Equal(t, StatusActive, store.byID[a.ID].Status)
	assert.Equal(t, 2, store.statusUpdates)
}

func TestLifecycleDelete(t *testing.T) {
	a := &Alert{ID: uuid.New()}
	store := newMemAlertStore(a)
	lc := newLifecycle(store, nil)

	require.NoError(t, lc.Delete(context.Background(), a.ID))
	assert.Empty(t, store.byID)
}

// N accepted fires yield exactly N history events, chronological per alert
// and newest-first in the global log, regardless of arrival order.
func TestLifecycleHistoryOrdering(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	log := &memTriggerLog{byAlert: make(map[uuid.UUID][]Trigger)}
	log.append(
		Trigger{ID: uuid.New(), AlertID: first, TriggeredAt: base.Add(2 * time.Minute)},
		Trigger{ID: uuid.New(), AlertID: second, TriggeredAt: base.Add(3 * time.Minute)},
		Trigger{ID: uuid.New(), AlertID: first, TriggeredAt: base},
		Trigger{ID: uuid.New(), AlertID: first, TriggeredAt: base.Add(time.Minute)},
	)
	lc := newLifecycle(newMemAlertStore(), log)
	ctx := context.Background()

	history, err := lc.History(ctx, first)
	require.NoError(t, err)
	require.Len(t, history, 3, "three fires must yield exactly three events")
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].TriggeredAt.After(history[i-1].TriggeredAt),
			"history must be strictly chronological")
	}

	recent, err := lc.RecentLog(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].TriggeredAt.After(recent[i-1].TriggeredAt),
			"recent log must be newest first")
	}
	assert.Equal(t, second, recent[0].AlertID)

	page, err := lc.RecentLog(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, recent[1].ID, page[0].ID)
	assert.Equal(t, recent[2].ID, page[1].ID)
}
