package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var ladderFixture = TradeType{
	Code:            "T",
	Name:            "Two-step",
	Period:          3,
	Multiplier:      2,
	TargetMultiples: []float64{1, 2},
	SellRatios:      []float64{0.5, 0.5},
}

func TestPlanTargetsLong(t *testing.T) {
	targets, err := PlanTargets(ladderFixture, Long, 100, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	require.Equal(t, 1, targets[0].Level)
	require.InDelta(t, 105.0, targets[0].TargetPrice, 1e-9)
	require.InDelta(t, 0.05, targets[0].PctFromEntry, 1e-9)
	require.InDelta(t, 1.0, targets[0].ATRMultiple, 1e-9)
	require.InDelta(t, 0.5, targets[0].SellRatio, 1e-9)

	require.Equal(t, 2, targets[1].Level)
	require.InDelta(t, 110.0, targets[1].TargetPrice, 1e-9)
	require.InDelta(t, 0.10, targets[1].PctFromEntry, 1e-9)
}

func TestPlanTargetsShort(t *testing.T) {
	targets, err := PlanTargets(ladderFixture, Short, 100, 5, 0.5)
	require.NoError(t, err)

	require.InDelta(t, 95.0, targets[0].TargetPrice, 1e-9)
	require.InDelta(t, -0.05, targets[0].PctFromEntry, 1e-9)
	require.InDelta(t, 90.0, targets[1].TargetPrice, 1e-9)

	// Short targets descend away from the entry.
	require.Less(t, targets[1].TargetPrice, targets[0].TargetPrice)
}

func TestPlanTargetsFirstRatioOverride(t *testing.T) {
	targets, err := PlanTargets(ladderFixture, Long, 100, 5, 0.25)
	require.NoError(t, err)

	require.InDelta(t, 0.25, targets[0].SellRatio, 1e-9)
	require.InDelta(t, 0.5, targets[1].SellRatio, 1e-9)
}

func TestPlanTargetsBuiltinLadder(t *testing.T) {
	homerun, err := TradeTypeByCode("A")
	require.NoError(t, err)

	targets, err := PlanTargets(homerun, Long, 50, 2, 0.25)
	require.NoError(t, err)
	require.Len(t, targets, 5)

	// 50 + {10,12,14,16,18}*2
	wantPrices := []float64{70, 74, 78, 82, 86}
	for i, want := range wantPrices {
		require.InDelta(t, want, targets[i].TargetPrice, 1e-9, "level %d", i+1)
	}

	require.InDelta(t, 0.25, targets[0].SellRatio, 1e-9)
	for _, target := range targets[1:] {
		require.InDelta(t, 0.125, target.SellRatio, 1e-9)
	}
}

func TestPlanTargetsRejectsBadInput(t *testing.T) {
	var invalid *InvalidParameterError

	_, err := PlanTargets(ladderFixture, Long, 0, 5, 0.5)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "entry_price", invalid.Param)

	_, err = PlanTargets(ladderFixture, Long, 100, 0, 0.5)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "atr_at_entry", invalid.Param)

	_, err = PlanTargets(ladderFixture, Long, 100, 5, 0.3)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "first_tp_ratio", invalid.Param)
}

func TestPlanTargetsRejectsBrokenTemplate(t *testing.T) {
	broken := ladderFixture
	broken.SellRatios = []float64{0.5, 0.6}

	_, err := PlanTargets(broken, Long, 100, 5, 0.5)

	var config *ConfigurationError
	require.ErrorAs(t, err, &config)
}
