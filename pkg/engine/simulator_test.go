package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ladderTargets plans the two-step fixture ladder at entry 100 with ATR 5:
// TP1 at 105 and TP2 at 110, half the position each.
func ladderTargets(t *testing.T) []ProfitTarget {
	t.Helper()
	targets, err := PlanTargets(ladderFixture, Long, 100, 5, 0.5)
	require.NoError(t, err)
	return targets
}

func TestSimulateExitFillsLadderInOrder(t *testing.T) {
	targets := ladderTargets(t)

	candles := flatCandles(6, 100, 2)
	candles[2].High = 106
	candles[4].High = 111

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Len(t, sells, 2)

	require.Equal(t, 1, sells[0].Level)
	require.Equal(t, "2025-01-03", sells[0].Date)
	require.InDelta(t, 105.0, sells[0].Price, 1e-9)
	require.InDelta(t, 0.5, sells[0].Ratio, 1e-9)
	require.InDelta(t, 0.5, sells[0].Remaining, 1e-9)
	require.Equal(t, "TP1 @ 105.00", sells[0].Label)

	require.Equal(t, 2, sells[1].Level)
	require.Equal(t, "2025-01-05", sells[1].Date)
	require.InDelta(t, 110.0, sells[1].Price, 1e-9)
	require.Zero(t, sells[1].Remaining)
	require.Equal(t, "TP2 @ 110.00", sells[1].Label)

	avgPrice, returnPct := aggregateSells(sells, 100)
	require.True(t, avgPrice.Valid)
	require.InDelta(t, 107.5, avgPrice.Float64, 1e-9)
	require.InDelta(t, 7.5, returnPct.Float64, 1e-9)
}

func TestSimulateExitWideBarFillsSeveralLevels(t *testing.T) {
	targets := ladderTargets(t)

	candles := flatCandles(4, 100, 2)
	candles[2].High = 115

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Len(t, sells, 2)
	require.Equal(t, sells[0].Date, sells[1].Date)
	require.Zero(t, sells[1].Remaining)
}

func TestSimulateExitSkipsEntryBar(t *testing.T) {
	targets := ladderTargets(t)

	// The entry bar itself spikes through every target but must not fill.
	candles := flatCandles(4, 100, 2)
	candles[1].High = 120

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Empty(t, sells)
}

func TestSimulateExitStopBeforeTargets(t *testing.T) {
	targets := ladderTargets(t)

	// Same bar spikes through TP1 but closes under the stop. The stop wins
	// and nothing fills above it.
	candles := flatCandles(4, 100, 2)
	candles[2].High = 106
	candles[2].Low = 85
	candles[2].Close = 89

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Len(t, sells, 1)

	require.Equal(t, 0, sells[0].Level)
	require.InDelta(t, 90.0, sells[0].Price, 1e-9)
	require.InDelta(t, 1.0, sells[0].Ratio, 1e-9)
	require.Zero(t, sells[0].Remaining)
	require.Equal(t, "Stop-loss @ 90.00", sells[0].Label)
}

func TestSimulateExitStopAfterPartialFill(t *testing.T) {
	targets := ladderTargets(t)

	candles := flatCandles(5, 100, 2)
	candles[2].High = 106
	candles[3].Low = 80
	candles[3].Close = 82

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Len(t, sells, 2)

	require.Equal(t, 1, sells[0].Level)
	require.Equal(t, 0, sells[1].Level)
	require.InDelta(t, 0.5, sells[1].Ratio, 1e-9)

	avgPrice, returnPct := aggregateSells(sells, 100)
	require.InDelta(t, 97.5, avgPrice.Float64, 1e-9)
	require.InDelta(t, -2.5, returnPct.Float64, 1e-9)
}

func TestSimulateExitShortSide(t *testing.T) {
	targets, err := PlanTargets(ladderFixture, Short, 100, 5, 0.5)
	require.NoError(t, err)

	candles := flatCandles(5, 100, 2)
	candles[2].Low = 94
	candles[3].Low = 89

	// Short stop sits above the entry; no bar closes up through it.
	sells := SimulateExit(candles, targets, Short, 1, 110)
	require.Len(t, sells, 2)
	require.InDelta(t, 95.0, sells[0].Price, 1e-9)
	require.InDelta(t, 90.0, sells[1].Price, 1e-9)

	avgPrice, returnPct := aggregateSells(sells, 100)
	require.InDelta(t, 92.5, avgPrice.Float64, 1e-9)
	require.InDelta(t, -7.5, returnPct.Float64, 1e-9)
}

func TestSimulateExitShortStop(t *testing.T) {
	targets, err := PlanTargets(ladderFixture, Short, 100, 5, 0.5)
	require.NoError(t, err)

	candles := flatCandles(4, 100, 2)
	candles[2].High = 113
	candles[2].Close = 112

	sells := SimulateExit(candles, targets, Short, 1, 110)
	require.Len(t, sells, 1)
	require.Equal(t, 0, sells[0].Level)
	require.InDelta(t, 110.0, sells[0].Price, 1e-9)
}

func TestSimulateExitLeavesPositionOpen(t *testing.T) {
	targets := ladderTargets(t)

	candles := flatCandles(6, 100, 2)

	sells := SimulateExit(candles, targets, Long, 1, 90)
	require.Empty(t, sells)

	avgPrice, returnPct := aggregateSells(sells, 100)
	require.False(t, avgPrice.Valid)
	require.False(t, returnPct.Valid)
}

func TestFindEntryExactMatchOnly(t *testing.T) {
	candles := flatCandles(5, 100, 2)

	idx, err := findEntry(candles, day(3))
	require.NoError(t, err)
	require.Equal(t, 3, idx)

	_, err = findEntry(candles, day(40))
	var notFound *EntryNotFoundError
	require.ErrorAs(t, err, &notFound)
}
