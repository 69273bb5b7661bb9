package engine

import (
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// ATR computes Wilder's average true range over the given period. The
// series is seeded at index period with the simple mean of the first
// period true ranges, then smoothed recursively with alpha = 1/period.
// Bars before the seed index are undefined.
func ATR(candles []core.Candle, period int) ([]Value, error) {
	if period <= 0 {
		return nil, &InvalidParameterError{Param: "period", Reason: "must be positive"}
	}
	if len(candles) < period+1 {
		return nil, &InsufficientDataError{Have: len(candles), Need: period + 1}
	}

	tr, err := TrueRange(candles)
	if err != nil {
		return nil, err
	}

	return smoothTrueRange(tr, period), nil
}

// smoothTrueRange applies Wilder's recursive smoothing to a true range
// series. Callers must guarantee len(tr) >= period+1.
func smoothTrueRange(tr []Value, period int) []Value {
	atr := make([]Value, len(tr))

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i].Float64
	}

	prev := sum / float64(period)
	atr[period] = Defined(prev)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(tr); i++ {
		prev = alpha*tr[i].Float64 + (1-alpha)*prev
		atr[i] = Defined(prev)
	}

	return atr
}
