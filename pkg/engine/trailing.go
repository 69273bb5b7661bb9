package engine

import (
	"math"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// BasicStop is the unratcheted stop level for a bar: the close minus the
// ATR-scaled volatility allowance for longs, plus it for shorts.
func BasicStop(side Side, closePrice, atr, multiplier float64) float64 {
	if side == Short {
		return closePrice + atr*multiplier
	}
	return closePrice - atr*multiplier
}

// TrailingStop folds the candle series into a ratcheting stop line. While
// the previous close stayed above the previous stop the position is still
// tracking, so the stop may only move up: the new level is the maximum of
// the previous stop and the bar's basic stop. Once the previous close is
// at or below the previous stop the position counts as stopped out and the
// line hard-resets to the bar's basic stop, as if a fresh position opened.
// Stop values are defined exactly where the ATR is defined. The atr slice
// must be aligned index-for-index with candles.
func TrailingStop(candles []core.Candle, atr []Value, multiplier float64) []Value {
	stops := make([]Value, len(candles))

	var prevStop Value
	for i := range candles {
		if !atr[i].Valid {
			continue
		}

		basic := BasicStop(Long, candles[i].Close, atr[i].Float64, multiplier)

		switch {
		case !prevStop.Valid:
			// First bar with a defined ATR starts the line.
			stops[i] = Defined(basic)
		case candles[i-1].Close > prevStop.Float64:
			// Still tracking: ratchet, never loosen.
			stops[i] = Defined(math.Max(prevStop.Float64, basic))
		default:
			// Stopped out on the previous bar: restart from scratch.
			stops[i] = Defined(basic)
		}

		prevStop = stops[i]
	}

	return stops
}
