package marketdata

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tickerwatch/alerts-backend/internal/alerts"
	"github.com/tickerwatch/alerts-backend/internal/indicators"
)

// DefaultCapacity holds a day of one-minute candles per series.
const DefaultCapacity = 1440

// Provider serves previous/current observation pairs from in-memory candle
// buffers fed off the market-data stream. Indicator readings and their bands
// are computed on demand from the buffered closes, so alerts on the same
// series share the warmup data.
//
// Provider implements alerts.ObservationProvider.
type Provider struct {
	capacity int
	logger   zerolog.Logger

	mu      sync.RWMutex
	buffers map[alerts.Series]*seriesBuffer
}

// NewProvider creates a provider with the given per-series buffer capacity.
func NewProvider(capacity int, logger zerolog.Logger) *Provider {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Provider{
		capacity: capacity,
		logger:   logger.With().Str("component", "marketdata").Logger(),
		buffers:  make(map[alerts.Series]*seriesBuffer),
	}
}

// Ingest buffers one closed candle.
func (p *Provider) Ingest(c Candle) {
	series := c.Series()

	p.mu.Lock()
	buf, ok := p.buffers[series]
	if !ok {
		buf = newSeriesBuffer(p.capacity)
		p.buffers[series] = buf
		p.logger.Debug().Str("series", series.String()).Msg("created series buffer")
	}
	p.mu.Unlock()

	buf.Append(c)
}

// GetObservation returns the previous/current pair for the series, plus the
// indicator reading with its bands when ref is non-nil. Cold series and
// indicators still in warmup report alerts.ErrUnavailable.
func (p *Provider) GetObservation(ctx context.Context, series alerts.Series, ref *alerts.IndicatorRef) (alerts.Observation, error) {
	if err := ctx.Err(); err != nil {
		return alerts.Observation{}, err
	}

	p.mu.RLock()
	buf := p.buffers[series]
	p.mu.RUnlock()

	if buf == nil {
		return alerts.Observation{}, fmt.Errorf("%w: no candles for %s", alerts.ErrUnavailable, series)
	}

	// One snapshot keeps obs.At aligned with the close actually evaluated
	// even when a candle lands mid-fetch.
	latest, closes, ok := buf.Snapshot()
	if !ok {
		return alerts.Observation{}, fmt.Errorf("%w: no candles for %s", alerts.ErrUnavailable, series)
	}

	obs := alerts.Observation{
		Series: series,
		At:     latest.CloseTime,
		Price: alerts.Sample{
			Current: closes[len(closes)-1],
		},
	}
	if len(closes) >= 2 {
		obs.Price.Previous = closes[len(closes)-2]
		obs.Price.HasPrevious = true
	}

	if ref == nil {
		return obs, nil
	}

	current, ok := computeBanded(closes, *ref)
	if !ok {
		return alerts.Observation{}, fmt.Errorf("%w: %s warming up on %s", alerts.ErrUnavailable, ref.Name, series)
	}
	banded := &alerts.BandedSample{
		Sample: alerts.Sample{Current: current.Value},
		Upper:  current.Upper,
		Lower:  current.Lower,
	}
	if previous, ok := computeBanded(closes[:len(closes)-1], *ref); ok {
		banded.Previous = previous.Value
		banded.HasPrevious = true
	}
	obs.Indicator = banded
	return obs, nil
}

// computeBanded evaluates one indicator ref over the closes. RSI-family
// indicators take their bands from parameters (sensible defaults); Bollinger
// bands compare the close against computed bands; plain moving averages only
// carry bands when the ref provides them explicitly.
func computeBanded(closes []float64, ref alerts.IndicatorRef) (indicators.Banded, bool) {
	switch ref.Name {
	case "rsi":
		v, ok := indicators.RSI(closes, int(ref.Param("period", 14)))
		if !ok {
			return indicators.Banded{}, false
		}
		return indicators.Banded{
			Value: v,
			Upper: ref.Param("upper", 70),
			Lower: ref.Param("lower", 30),
		}, true

	case "crsi":
		v, ok := indicators.ConnorsRSI(
			closes,
			int(ref.Param("rsi_period", 3)),
			int(ref.Param("streak_period", 2)),
			int(ref.Param("rank_period", 100)),
		)
		if !ok {
			return indicators.Banded{}, false
		}
		return indicators.Banded{
			Value: v,
			Upper: ref.Param("upper", 90),
			Lower: ref.Param("lower", 10),
		}, true

	case "bbands":
		b, ok := indicators.BollingerBands(closes, int(ref.Param("period", 20)), ref.Param("width", 2))
		if !ok {
			return indicators.Banded{}, false
		}
		// The watched value is the close; the bands are the envelope.
		b.Value = closes[len(closes)-1]
		return b, true

	case "sma", "ema":
		var (
			v  float64
			ok bool
		)
		if ref.Name == "sma" {
			v, ok = indicators.SMA(closes, int(ref.Param("period", 20)))
		} else {
			v, ok = indicators.EMA(closes, int(ref.Param("period", 20)))
		}
		if !ok {
			return indicators.Banded{}, false
		}
		// Moving averages have no intrinsic bands; a band the ref does
		// not provide stays NaN and can never fire.
		upper, hasUpper := ref.Params["upper"]
		lower, hasLower := ref.Params["lower"]
		if !hasUpper {
			upper = math.NaN()
		}
		if !hasLower {
			lower = math.NaN()
		}
		if !hasUpper && !hasLower {
			return indicators.Banded{}, false
		}
		return indicators.Banded{Value: v, Upper: upper, Lower: lower}, true

	default:
		return indicators.Banded{}, false
	}
}
