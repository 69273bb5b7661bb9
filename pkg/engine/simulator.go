package engine

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// ratioEpsilon absorbs float drift when draining the remaining position
const ratioEpsilon = 1e-9

// Sell is one simulated fill, either a take-profit level or the final
// protective stop. Level 0 marks the stop; ladder levels start at 1.
type Sell struct {
	Date      string  `json:"date"`
	Price     float64 `json:"price"`
	Ratio     float64 `json:"ratio"`
	Remaining float64 `json:"remaining"`
	Level     int     `json:"level"`
	Label     string  `json:"label"`
}

// findEntry locates the bar whose calendar day matches the entry date.
// Only an exact match counts.
func findEntry(candles []core.Candle, entryDate time.Time) (int, error) {
	for i, c := range candles {
		if c.SameDay(entryDate) {
			return i, nil
		}
	}
	return 0, &EntryNotFoundError{EntryDate: entryDate}
}

// SimulateExit walks the bars after the entry and fills the ladder against
// a fixed protective stop. Evaluation starts on the bar after entryIdx.
// On each bar the stop is checked first: a close at or beyond stopPrice
// sells the whole remainder at the stop and ends the trade. Otherwise
// take-profit levels fill in ascending order for as long as the bar's
// extreme reaches them, so a wide bar can fill several levels at once.
// Whatever is left when the series ends stays open.
func SimulateExit(candles []core.Candle, targets []ProfitTarget, side Side, entryIdx int, stopPrice float64) []Sell {
	sells := make([]Sell, 0, len(targets)+1)

	remaining := 1.0
	next := 0

	for i := entryIdx + 1; i < len(candles) && remaining > ratioEpsilon; i++ {
		c := candles[i]

		if stopHit(side, c.Close, stopPrice) {
			sells = append(sells, Sell{
				Date:      c.Date(),
				Price:     stopPrice,
				Ratio:     remaining,
				Remaining: 0,
				Level:     0,
				Label:     fmt.Sprintf("Stop-loss @ %.2f", stopPrice),
			})
			remaining = 0
			break
		}

		for next < len(targets) && remaining > ratioEpsilon && targetHit(side, c, targets[next]) {
			t := targets[next]

			ratio := t.SellRatio
			if ratio > remaining {
				ratio = remaining
			}
			remaining -= ratio
			if remaining < ratioEpsilon {
				remaining = 0
			}

			sells = append(sells, Sell{
				Date:      c.Date(),
				Price:     t.TargetPrice,
				Ratio:     ratio,
				Remaining: remaining,
				Level:     t.Level,
				Label:     fmt.Sprintf("TP%d @ %.2f", t.Level, t.TargetPrice),
			})
			next++
		}
	}

	return sells
}

func stopHit(side Side, closePrice, stopPrice float64) bool {
	if side == Short {
		return closePrice >= stopPrice
	}
	return closePrice <= stopPrice
}

func targetHit(side Side, c core.Candle, t ProfitTarget) bool {
	if side == Short {
		return c.Low <= t.TargetPrice
	}
	return c.High >= t.TargetPrice
}

// aggregateSells reduces the fills to a ratio-weighted average sell price
// and the realized return over the entry. Both are undefined when nothing
// sold.
func aggregateSells(sells []Sell, entryPrice float64) (avgPrice, returnPct Value) {
	if len(sells) == 0 {
		return Undefined(), Undefined()
	}

	prices := make([]float64, len(sells))
	weights := make([]float64, len(sells))
	for i, s := range sells {
		prices[i] = s.Price
		weights[i] = s.Ratio
	}

	mean := stat.Mean(prices, weights)
	return Defined(mean), Defined((mean - entryPrice) / entryPrice * 100)
}
