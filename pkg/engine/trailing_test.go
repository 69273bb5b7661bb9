package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrailingStopDefinedWithATR(t *testing.T) {
	candles := walkCandles(50, 21)

	atr, err := ATR(candles, 14)
	require.NoError(t, err)

	stops := TrailingStop(candles, atr, 2.5)
	require.Len(t, stops, len(candles))

	for i := range candles {
		require.Equal(t, atr[i].Valid, stops[i].Valid, "bar %d", i)
	}

	// The first defined bar is a plain basic stop.
	first := 14
	want := candles[first].Close - atr[first].Float64*2.5
	require.InDelta(t, want, stops[first].Float64, 1e-9)
}

func TestTrailingStopRatchetsWhileTracking(t *testing.T) {
	// Steadily rising closes never touch the stop, so the line may only
	// move up.
	rows := make([][4]float64, 30)
	price := 100.0
	for i := range rows {
		rows[i] = [4]float64{price, price + 2, price - 2, price + 1}
		price += 1
	}
	candles := candlesFromRows(rows)

	atr, err := ATR(candles, 5)
	require.NoError(t, err)

	stops := TrailingStop(candles, atr, 3)

	prev := stops[5].Float64
	for i := 6; i < len(candles); i++ {
		require.GreaterOrEqual(t, stops[i].Float64, prev, "bar %d", i)
		prev = stops[i].Float64
	}
}

func TestTrailingStopHardResetAfterStopOut(t *testing.T) {
	candles := flatCandles(12, 100, 2)

	// Crash on bar 8, then a weak recovery.
	candles[8].Close = 90
	candles[8].Low = 89
	candles[9].Open = 90
	candles[9].Close = 91
	candles[9].High = 92
	candles[9].Low = 89

	atr, err := ATR(candles, 3)
	require.NoError(t, err)

	stops := TrailingStop(candles, atr, 2)

	// Flat warmup pins the stop at 96. The crash bar itself still ratchets
	// because the previous close was above the line.
	require.InDelta(t, 96.0, stops[7].Float64, 1e-9)
	require.InDelta(t, 96.0, stops[8].Float64, 1e-9)

	// Bar 9 follows a stopped-out bar, so the line restarts at the basic
	// stop even though that is far below the previous level.
	wantReset := candles[9].Close - atr[9].Float64*2
	require.InDelta(t, wantReset, stops[9].Float64, 1e-9)
	require.Less(t, stops[9].Float64, stops[8].Float64)
}

func TestTrailingStopFlatSeries(t *testing.T) {
	candles := flatCandles(10, 100, 2)

	atr, err := ATR(candles, 3)
	require.NoError(t, err)

	stops := TrailingStop(candles, atr, 2)

	for i := 3; i < len(candles); i++ {
		require.InDelta(t, 96.0, stops[i].Float64, 1e-9)
	}
}

func TestBasicStopSides(t *testing.T) {
	require.InDelta(t, 90.0, BasicStop(Long, 100, 5, 2), 1e-9)
	require.InDelta(t, 110.0, BasicStop(Short, 100, 5, 2), 1e-9)
}
