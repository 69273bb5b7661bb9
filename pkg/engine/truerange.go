package engine

import (
	"math"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// TrueRange computes the per-bar true range: the largest of the bar's
// high-low spread and the gaps between the bar's extremes and the previous
// close. The first bar has no previous close, so its value is undefined.
func TrueRange(candles []core.Candle) ([]Value, error) {
	if len(candles) < 2 {
		return nil, &InsufficientDataError{Have: len(candles), Need: 2}
	}

	tr := make([]Value, len(candles))
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - prevClose)
		lowClose := math.Abs(candles[i].Low - prevClose)

		tr[i] = Defined(math.Max(highLow, math.Max(highClose, lowClose)))
	}

	return tr, nil
}
