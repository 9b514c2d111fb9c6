package marketdata

import (
	"sync"
	"time"

	"github.com/tickerwatch/alerts-backend/internal/alerts"
)

// Candle is one closed candlestick as published on the market-data stream.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series returns the series key the candle belongs to.
func (c Candle) Series() alerts.Series {
	return alerts.Series{Symbol: c.Symbol, Interval: c.Interval}
}

// seriesBuffer is a fixed-capacity circular buffer of closed candles for one
// series. O(1) append, oldest candle overwritten when full.
type seriesBuffer struct {
	candles []Candle
	head    int // next insertion point
	size    int
	mu      sync.RWMutex
}

func newSeriesBuffer(capacity int) *seriesBuffer {
	return &seriesBuffer{candles: make([]Candle, capacity)}
}

// Append adds a closed candle. A candle whose close time matches the latest
// buffered one replaces it in place, so duplicate publishes do not distort
// indicator windows.
func (b *seriesBuffer) Append(c Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size > 0 {
		last := (b.head - 1 + len(b.candles)) % len(b.candles)
		if b.candles[last].CloseTime.Equal(c.CloseTime) {
			b.candles[last] = c
			return
		}
	}

	b.candles[b.head] = c
	b.head = (b.head + 1) % len(b.candles)
	if b.size < len(b.candles) {
		b.size++
	}
}

// Size returns the number of buffered candles.
func (b *seriesBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Closes returns up to n most recent close prices in chronological order.
func (b *seriesBuffer) Closes(n int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}

	out := make([]float64, n)
	start := b.head - n
	if start < 0 {
		start += len(b.candles)
	}
	for i := 0; i < n; i++ {
		out[i] = b.candles[(start+i)%len(b.candles)].Close
	}
	return out
}

// Latest returns the most recent candle, or nil when empty.
func (b *seriesBuffer) Latest() *Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	idx := (b.head - 1 + len(b.candles)) % len(b.candles)
	c := b.candles[idx]
	return &c
}

// Snapshot returns the latest candle together with all buffered closes in
// chronological order, taken under one lock so a concurrent Append cannot
// leave the two out of step. ok is false when the buffer is empty.
func (b *seriesBuffer) Snapshot() (latest Candle, closes []float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return Candle{}, nil, false
	}

	closes = make([]float64, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.candles)
	}
	for i := 0; i < b.size; i++ {
		closes[i] = b.candles[(start+i)%len(b.candles)].Close
	}
	idx := (b.head - 1 + len(b.candles)) % len(b.candles)
	return b.candles[idx], closes, true
}
