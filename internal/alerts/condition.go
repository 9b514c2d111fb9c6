package alerts

import (
	"math"
	"time"
)

// Sample is a previous/current pair of one scalar reading.
type Sample struct {
	Current     float64
	Previous    float64
	HasPrevious bool
}

// BandedSample adds the indicator's own band levels to a Sample.
type BandedSample struct {
	Sample
	Upper float64
	Lower float64
}

// Observation is the evaluation unit for one series in one cycle. It is
// ephemeral; the engine never persists it. Indicator is nil for fetches that
// only needed the price.
type Observation struct {
	Series    Series
	At        time.Time
	Price     Sample
	Indicator *BandedSample
}

// Evaluate is the pure condition evaluator: no state, no I/O. It returns the
// directions that fired for this observation, empty when nothing fired.
//
// Level kinds fire on the current value alone, every cycle the level holds;
// the cooldown gate bounds their frequency. Cross kinds require a previous
// value and never fire on absent history. Missing or NaN readings mean
// "cannot evaluate" and fire nothing, leaving the alert live for next cycle.
func Evaluate(a *Alert, obs Observation) []Direction {
	switch a.Kind {
	case KindPriceAbove, KindPriceBelow, KindPriceCrossUp, KindPriceCrossDown:
		return evaluatePrice(a.Kind, a.Threshold, obs.Price)
	case KindIndicatorAbove, KindIndicatorBelow, KindIndicatorCrossUp, KindIndicatorCrossDown:
		if obs.Indicator == nil {
			return nil
		}
		return evaluateBanded(a.Kind, a.Directions, *obs.Indicator)
	default:
		return nil
	}
}

func evaluatePrice(kind ConditionKind, threshold float64, s Sample) []Direction {
	if !usable(s.Current) {
		return nil
	}
	switch kind {
	case KindPriceAbove:
		if s.Current > threshold {
			return []Direction{DirectionNone}
		}
	case KindPriceBelow:
		if s.Current < threshold {
			return []Direction{DirectionNone}
		}
	case KindPriceCrossUp:
		if hasPrev(s) && s.Previous <= threshold && s.Current > threshold {
			return []Direction{DirectionNone}
		}
	case KindPriceCrossDown:
		if hasPrev(s) && s.Previous >= threshold && s.Current < threshold {
			return []Direction{DirectionNone}
		}
	}
	return nil
}

// evaluateBanded checks each enabled band independently, so an observation
// that gapped across both bands in one cycle fires both directions. Crosses
// are oriented by kind: cross_up fires on upward crosses of a band, crossing
// the lower band before the upper; cross_down mirrors that downward.
func evaluateBanded(kind ConditionKind, dirs DirectionSet, b BandedSample) []Direction {
	if !usable(b.Current) {
		return nil
	}

	var fired []Direction
	check := func(d Direction, band float64, hit bool) {
		if dirs.Enabled(d) && usable(band) && hit {
			fired = append(fired, d)
		}
	}

	switch kind {
	case KindIndicatorAbove:
		check(DirectionUpper, b.Upper, b.Current > b.Upper)
	case KindIndicatorBelow:
		check(DirectionLower, b.Lower, b.Current < b.Lower)
	case KindIndicatorCrossUp:
		if !hasPrev(b.Sample) {
			return nil
		}
		check(DirectionLower, b.Lower, b.Previous <= b.Lower && b.Current > b.Lower)
		check(DirectionUpper, b.Upper, b.Previous <= b.Upper && b.Current > b.Upper)
	case KindIndicatorCrossDown:
		if !hasPrev(b.Sample) {
			return nil
		}
		check(DirectionUpper, b.Upper, b.Previous >= b.Upper && b.Current < b.Upper)
		check(DirectionLower, b.Lower, b.Previous >= b.Lower && b.Current < b.Lower)
	}
	return fired
}

func hasPrev(s Sample) bool {
	return s.HasPrevious && usable(s.Previous)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
