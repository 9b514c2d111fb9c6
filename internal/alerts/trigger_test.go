package alerts

import (
	"math"
	"testing"
	"time"
)

func TestNewTriggerResolvesMessage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := bandObs(25, 80, 30, 70, true)

	a := bandAlert(KindIndicatorCrossUp, DirectionSet{Upper: true, Lower: true})

	upper := NewTrigger(a, DirectionUpper, obs, now)
	if upper.Message != "upper fired" {
		t.Errorf("expected upper message, got %q", upper.Message)
	}
	lower := NewTrigger(a, DirectionLower, obs, now)
	if lower.Message != "lower fired" {
		t.Errorf("expected lower message, got %q", lower.Message)
	}
	if upper.ID == lower.ID {
		t.Error("triggers must get distinct ids")
	}
	if !upper.TriggeredAt.Equal(now) {
		t.Errorf("expected triggered_at %v, got %v", now, upper.TriggeredAt)
	}
}

func TestNewTriggerPriceAlertIsNonDirectional(t *testing.T) {
	a := priceAlert(KindPriceAbove, 100)
	obs := priceObs(99, 101, true)

	trig := NewTrigger(a, DirectionNone, obs, time.Now())
	if trig.Direction != DirectionNone {
		t.Errorf("expected direction none, got %s", trig.Direction)
	}
	if trig.Message != "price alert" {
		t.Errorf("expected single configured message, got %q", trig.Message)
	}
	if trig.ObservedPrice == nil || *trig.ObservedPrice != 101 {
		t.Errorf("expected observed price 101, got %v", trig.ObservedPrice)
	}
	if trig.ObservedIndicator != nil {
		t.Error("price alert should not record an indicator value")
	}
}

func TestNewTriggerObservedValuesAreOpportunistic(t *testing.T) {
	a := bandAlert(KindIndicatorCrossUp, DirectionSet{Upper: true})
	obs := bandObs(25, 80, 30, 70, true)
	obs.Price.Current = math.NaN()

	trig := NewTrigger(a, DirectionUpper, obs, time.Now())
	if trig.ObservedPrice != nil {
		t.Error("unusable price must not block trigger creation, just stay unset")
	}
	if trig.ObservedIndicator == nil || *trig.ObservedIndicator != 80 {
		t.Errorf("expected observed indicator 80, got %v", trig.ObservedIndicator)
	}
}
