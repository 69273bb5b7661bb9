package engine

import (
	"time"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// Result holds the per-bar series produced by one analysis pass. All
// slices are aligned index-for-index with the input candles.
type Result struct {
	Period     int
	Multiplier float64
	TrueRange  []Value
	ATR        []Value
	Stop       []Value
}

// Run computes the full indicator chain for the bar sequence: true range,
// Wilder ATR over period, and the ratcheting trailing stop scaled by
// multiplier.
func Run(candles []core.Candle, period int, multiplier float64) (*Result, error) {
	if period <= 0 {
		return nil, &InvalidParameterError{Param: "period", Reason: "must be positive"}
	}
	if multiplier <= 0 {
		return nil, &InvalidParameterError{Param: "multiplier", Reason: "must be positive"}
	}
	if len(candles) < period+1 {
		return nil, &InsufficientDataError{Have: len(candles), Need: period + 1}
	}

	tr, err := TrueRange(candles)
	if err != nil {
		return nil, err
	}

	atr := smoothTrueRange(tr, period)
	stop := TrailingStop(candles, atr, multiplier)

	return &Result{
		Period:     period,
		Multiplier: multiplier,
		TrueRange:  tr,
		ATR:        atr,
		Stop:       stop,
	}, nil
}

// CurrentATR returns the most recent defined ATR value
func (r *Result) CurrentATR() Value {
	for i := len(r.ATR) - 1; i >= 0; i-- {
		if r.ATR[i].Valid {
			return r.ATR[i]
		}
	}
	return Undefined()
}

// VolatilityAmount returns the stop distance at the latest bar, the
// current ATR scaled by the multiplier
func (r *Result) VolatilityAmount() Value {
	atr := r.CurrentATR()
	if !atr.Valid {
		return Undefined()
	}
	return Defined(atr.Float64 * r.Multiplier)
}

// atrNearest picks the ATR at idx, or the defined value closest to it
// when the entry lands inside the warmup window.
func atrNearest(atr []Value, idx int) (float64, bool) {
	if idx >= 0 && idx < len(atr) && atr[idx].Valid {
		return atr[idx].Float64, true
	}
	for d := 1; d < len(atr); d++ {
		if i := idx - d; i >= 0 && atr[i].Valid {
			return atr[i].Float64, true
		}
		if i := idx + d; i < len(atr) && atr[i].Valid {
			return atr[i].Float64, true
		}
	}
	return 0, false
}

// ExitParams describes a hypothetical position to simulate an exit for
type ExitParams struct {
	TradeType    string
	Side         Side
	EntryPrice   float64
	EntryDate    time.Time
	FirstTPRatio float64
}

// ExitStrategy is the simulated exit plan and its outcome
type ExitStrategy struct {
	TradeType            string         `json:"trade_type"`
	EntryPrice           float64        `json:"entry_price"`
	StopLossPrice        float64        `json:"stop_loss_price"`
	FirstTPRatio         float64        `json:"first_tp_ratio"`
	ProfitTargets        []ProfitTarget `json:"profit_targets"`
	Sells                []Sell         `json:"sells"`
	WeightedAvgSellPrice Value          `json:"weighted_avg_sell_price"`
	TotalReturnPct       Value          `json:"total_return_pct"`
}

// BuildExitStrategy plans the take-profit ladder for the entry and runs
// the forward simulation against the bars that follow it. The protective
// stop is fixed at the entry bar's basic stop and never trails.
func BuildExitStrategy(candles []core.Candle, r *Result, p ExitParams) (*ExitStrategy, error) {
	t, err := TradeTypeByCode(p.TradeType)
	if err != nil {
		return nil, err
	}
	if p.EntryPrice <= 0 {
		return nil, &InvalidParameterError{Param: "entry_price", Reason: "must be positive"}
	}
	if !allowedFirstTPRatio(p.FirstTPRatio) {
		return nil, &InvalidParameterError{Param: "first_tp_ratio", Reason: "must be 0.25 or 0.5"}
	}

	entryIdx, err := findEntry(candles, p.EntryDate)
	if err != nil {
		return nil, err
	}

	atrAtEntry, ok := atrNearest(r.ATR, entryIdx)
	if !ok {
		return nil, &InsufficientDataError{Have: len(candles), Need: r.Period + 1}
	}

	targets, err := PlanTargets(t, p.Side, p.EntryPrice, atrAtEntry, p.FirstTPRatio)
	if err != nil {
		return nil, err
	}

	stopPrice := BasicStop(p.Side, candles[entryIdx].Close, atrAtEntry, r.Multiplier)
	sells := SimulateExit(candles, targets, p.Side, entryIdx, stopPrice)
	avgPrice, returnPct := aggregateSells(sells, p.EntryPrice)

	return &ExitStrategy{
		TradeType:            t.Code,
		EntryPrice:           p.EntryPrice,
		StopLossPrice:        stopPrice,
		FirstTPRatio:         p.FirstTPRatio,
		ProfitTargets:        targets,
		Sells:                sells,
		WeightedAvgSellPrice: avgPrice,
		TotalReturnPct:       returnPct,
	}, nil
}
