package marketdata

import (
	"testing"
	"time"
)

func candleAt(i int, close float64) Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return Candle{
		Symbol:    "BTCUSDT",
		Interval:  "1m",
		OpenTime:  base.Add(time.Duration(i) * time.Minute),
		CloseTime: base.Add(time.Duration(i+1) * time.Minute),
		Close:     close,
	}
}

func TestSeriesBufferAppendAndCloses(t *testing.T) {
	b := newSeriesBuffer(10)

	if b.Size() != 0 {
		t.Fatalf("expected empty buffer, got size %d", b.Size())
	}

	for i := 0; i < 5; i++ {
		b.Append(candleAt(i, float64(100+i)))
	}
	if b.Size() != 5 {
		t.Fatalf("expected size 5, got %d", b.Size())
	}

	closes := b.Closes(3)
	want := []float64{102, 103, 104}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("closes[%d] = %f, expected %f", i, c, want[i])
		}
	}
}

func TestSeriesBufferWraparound(t *testing.T) {
	b := newSeriesBuffer(4)

	for i := 0; i < 10; i++ {
		b.Append(candleAt(i, float64(i)))
	}
	if b.Size() != 4 {
		t.Fatalf("expected size capped at 4, got %d", b.Size())
	}

	closes := b.Closes(4)
	want := []float64{6, 7, 8, 9}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("closes[%d] = %f, expected %f", i, c, want[i])
		}
	}

	latest := b.Latest()
	if latest == nil || latest.Close != 9 {
		t.Errorf("expected latest close 9, got %v", latest)
	}
}

func TestSeriesBufferSnapshot(t *testing.T) {
	b := newSeriesBuffer(4)

	if _, _, ok := b.Snapshot(); ok {
		t.Fatal("empty buffer must report no snapshot")
	}

	for i := 0; i < 6; i++ {
		b.Append(candleAt(i, float64(i)))
	}

	latest, closes, ok := b.Snapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	want := []float64{2, 3, 4, 5}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("closes[%d] = %f, expected %f", i, c, want[i])
		}
	}
	if latest.Close != closes[len(closes)-1] {
		t.Errorf("latest close %f out of step with closes %v", latest.Close, closes)
	}
	if !latest.CloseTime.Equal(candleAt(5, 5).CloseTime) {
		t.Errorf("latest close time = %v, expected the newest candle", latest.CloseTime)
	}
}

func TestSeriesBufferDuplicateCloseTimeReplaces(t *testing.T) {
	b := newSeriesBuffer(10)

	b.Append(candleAt(0, 100))
	dup := candleAt(0, 101)
	b.Append(dup)

	if b.Size() != 1 {
		t.Fatalf("duplicate close time must replace, not grow: size %d", b.Size())
	}
	if latest := b.Latest(); latest.Close != 101 {
		t.Errorf("expected replacement close 101, got %f", latest.Close)
	}
}
