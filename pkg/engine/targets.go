package engine

// ProfitTarget is one rung of the take-profit ladder
type ProfitTarget struct {
	Level        int     `json:"level"`
	TargetPrice  float64 `json:"target_price"`
	PctFromEntry float64 `json:"pct_from_entry"`
	ATRMultiple  float64 `json:"atr_multiple"`
	SellRatio    float64 `json:"sell_ratio"`
}

// PlanTargets materializes the trade type's ladder for a concrete entry.
// Each level sits atrMultiple ATRs beyond the entry price, above it for
// longs and below it for shorts. The caller's firstTPRatio replaces the
// template's first sell ratio; it must be one of FirstTPRatios.
func PlanTargets(t TradeType, side Side, entryPrice, atrAtEntry, firstTPRatio float64) ([]ProfitTarget, error) {
	if entryPrice <= 0 {
		return nil, &InvalidParameterError{Param: "entry_price", Reason: "must be positive"}
	}
	if atrAtEntry <= 0 {
		return nil, &InvalidParameterError{Param: "atr_at_entry", Reason: "must be positive"}
	}
	if !allowedFirstTPRatio(firstTPRatio) {
		return nil, &InvalidParameterError{Param: "first_tp_ratio", Reason: "must be 0.25 or 0.5"}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	targets := make([]ProfitTarget, 0, len(t.TargetMultiples))
	total := 0.0

	for i, multiple := range t.TargetMultiples {
		ratio := t.SellRatios[i]
		if i == 0 {
			ratio = firstTPRatio
		}
		total += ratio

		price := entryPrice + multiple*atrAtEntry
		if side == Short {
			price = entryPrice - multiple*atrAtEntry
		}

		targets = append(targets, ProfitTarget{
			Level:        i + 1,
			TargetPrice:  price,
			PctFromEntry: (price - entryPrice) / entryPrice,
			ATRMultiple:  multiple,
			SellRatio:    ratio,
		})
	}

	if total > 1.0+ratioEpsilon {
		return nil, &ConfigurationError{
			TradeType: t.Code,
			Reason:    "sell ratios sum past the whole position",
		}
	}

	return targets, nil
}
