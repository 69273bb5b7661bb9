package engine

import (
	"fmt"
	"sort"
)

// Side distinguishes long positions from short ones
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// FirstTPRatios are the accepted fractions of the position sold at the
// first take-profit level.
var FirstTPRatios = []float64{0.25, 0.5}

// TradeType bundles the fixed parameters of a named trade playbook: the
// ATR smoothing period, the stop multiplier and the take-profit ladder.
// TargetMultiples are ATR distances from the entry price, ascending.
// SellRatios are fractions of the original position per level; the first
// entry is a default that callers override with their own first TP ratio.
type TradeType struct {
	Code            string
	Name            string
	Period          int
	Multiplier      float64
	TargetMultiples []float64
	SellRatios      []float64
}

var tradeTypes = map[string]TradeType{
	"A": {
		Code:            "A",
		Name:            "Homerun",
		Period:          14,
		Multiplier:      3.0,
		TargetMultiples: []float64{10, 12, 14, 16, 18},
		SellRatios:      []float64{0.5, 0.125, 0.125, 0.125, 0.125},
	},
	"M": {
		Code:            "M",
		Name:            "Mid-range",
		Period:          20,
		Multiplier:      2.5,
		TargetMultiples: []float64{5.5, 7.5, 9.5, 11.5, 13.5},
		SellRatios:      []float64{0.5, 0.125, 0.125, 0.125, 0.125},
	},
	"B": {
		Code:            "B",
		Name:            "Single",
		Period:          22,
		Multiplier:      2.0,
		TargetMultiples: []float64{2.2, 4.2, 6.2, 8.2, 10.2},
		SellRatios:      []float64{0.5, 0.125, 0.125, 0.125, 0.125},
	},
}

func init() {
	for _, t := range tradeTypes {
		if err := t.Validate(); err != nil {
			panic(err)
		}
	}
}

// TradeTypeByCode resolves a template by its single-letter code
func TradeTypeByCode(code string) (TradeType, error) {
	t, ok := tradeTypes[code]
	if !ok {
		return TradeType{}, &InvalidParameterError{
			Param:  "trade_type",
			Reason: fmt.Sprintf("unknown trade type %q", code),
		}
	}
	return t, nil
}

// TradeTypes lists the available templates ordered by code
func TradeTypes() []TradeType {
	list := make([]TradeType, 0, len(tradeTypes))
	for _, t := range tradeTypes {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

// Validate checks the template for internal consistency. The sell ladder
// must not be able to exceed the whole position even when the caller picks
// the largest allowed first TP ratio.
func (t TradeType) Validate() error {
	if t.Period <= 0 {
		return &ConfigurationError{TradeType: t.Code, Reason: "period must be positive"}
	}
	if t.Multiplier <= 0 {
		return &ConfigurationError{TradeType: t.Code, Reason: "multiplier must be positive"}
	}
	if len(t.TargetMultiples) == 0 || len(t.TargetMultiples) != len(t.SellRatios) {
		return &ConfigurationError{TradeType: t.Code, Reason: "target multiples and sell ratios must pair up"}
	}

	for i, m := range t.TargetMultiples {
		if m <= 0 {
			return &ConfigurationError{TradeType: t.Code, Reason: "target multiples must be positive"}
		}
		if i > 0 && m <= t.TargetMultiples[i-1] {
			return &ConfigurationError{TradeType: t.Code, Reason: "target multiples must be ascending"}
		}
	}

	maxFirst := 0.0
	for _, r := range FirstTPRatios {
		if r > maxFirst {
			maxFirst = r
		}
	}

	total := maxFirst
	for _, r := range t.SellRatios[1:] {
		if r <= 0 {
			return &ConfigurationError{TradeType: t.Code, Reason: "sell ratios must be positive"}
		}
		total += r
	}
	if total > 1.0+ratioEpsilon {
		return &ConfigurationError{
			TradeType: t.Code,
			Reason:    fmt.Sprintf("sell ladder can reach %.4f of the position", total),
		}
	}

	return nil
}

// allowedFirstTPRatio reports whether the ratio is one of the accepted
// first-level fractions.
func allowedFirstTPRatio(ratio float64) bool {
	for _, r := range FirstTPRatios {
		if ratio == r {
			return true
		}
	}
	return false
}
