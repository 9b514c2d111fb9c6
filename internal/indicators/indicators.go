package indicators

import "math"

// Banded pairs an oscillator reading with the band levels in force for the
// same observation. Band levels belong to the indicator's output; alert
// definitions never store them.
type Banded struct {
	Value float64 `json:"value"`
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// SMA returns the simple moving average of the last period closes.
// The bool is false when there is not enough data.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average seeded with an SMA over the
// first period closes.
func EMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	ema, _ := SMA(closes[:period], period)
	multiplier := 2.0 / (float64(period) + 1.0)
	for _, c := range closes[period:] {
		ema = (c-ema)*multiplier + ema
	}
	return ema, true
}

// RSI returns the Relative Strength Index over the closes, seeded with the
// first period+1 values and Wilder-smoothed across the rest.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// ConnorsRSI composes the Connors RSI: the average of a short RSI on closes,
// an RSI on the up/down streak series and the percent rank of the one-period
// return. Typical parameters are (3, 2, 100).
func ConnorsRSI(closes []float64, rsiPeriod, streakPeriod, rankPeriod int) (float64, bool) {
	priceRSI, ok := RSI(closes, rsiPeriod)
	if !ok {
		return 0, false
	}
	streakRSI, ok := RSI(streaks(closes), streakPeriod)
	if !ok {
		return 0, false
	}
	rank, ok := percentRank(changes(closes), rankPeriod)
	if !ok {
		return 0, false
	}
	return (priceRSI + streakRSI + rank) / 3, true
}

// BollingerBands returns the middle SMA with bands width standard deviations
// away, computed over the last period closes.
func BollingerBands(closes []float64, period int, width float64) (Banded, bool) {
	mid, ok := SMA(closes, period)
	if !ok {
		return Banded{}, false
	}
	variance := 0.0
	for _, c := range closes[len(closes)-period:] {
		d := c - mid
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))
	return Banded{
		Value: mid,
		Upper: mid + width*sigma,
		Lower: mid - width*sigma,
	}, true
}

// streaks converts closes to the signed count of consecutive up/down moves.
func streaks(closes []float64) []float64 {
	if len(closes) == 0 {
		return nil
	}
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			if out[i-1] > 0 {
				out[i] = out[i-1] + 1
			} else {
				out[i] = 1
			}
		case closes[i] < closes[i-1]:
			if out[i-1] < 0 {
				out[i] = out[i-1] - 1
			} else {
				out[i] = -1
			}
		}
	}
	return out
}

// changes converts closes to one-period percentage changes.
func changes(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	return out
}

// percentRank returns how many of the prior period values the latest value
// exceeds, as a percentage.
func percentRank(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	latest := values[len(values)-1]
	window := values[len(values)-1-period : len(values)-1]
	below := 0
	for _, v := range window {
		if v < latest {
			below++
		}
	}
	return float64(below) / float64(period) * 100, true
}
