package trailingstop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/engine"
	"github.com/tesius/trailing-stop-visualizer/pkg/feed"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeFeeder struct {
	candles  []core.Candle
	err      error
	ticker   string
	interval string
	start    time.Time
	end      time.Time
	calls    int
}

func (f *fakeFeeder) CandlesByPeriod(_ context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, error) {
	f.calls++
	f.ticker, f.interval, f.start, f.end = ticker, interval, start, end
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeFeeder) CandlesByLimit(_ context.Context, ticker, interval string, limit int) ([]core.Candle, error) {
	f.calls++
	f.ticker, f.interval = ticker, interval
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(text string) { n.messages = append(n.messages, text) }

func (n *fakeNotifier) OnError(err error) {}

// flatBars builds n identical daily bars with the given close and
// high-low spread starting at 2025-01-01.
func flatBars(n int, closePrice, barRange float64) []core.Candle {
	candles := make([]core.Candle, n)
	for i := range candles {
		candles[i] = core.Candle{
			Ticker:   "TEST",
			Time:     testStart.AddDate(0, 0, i),
			Open:     closePrice,
			High:     closePrice + barRange/2,
			Low:      closePrice - barRange/2,
			Close:    closePrice,
			Volume:   1000,
			Complete: true,
		}
	}
	return candles
}

func newTestAnalyzer(f *fakeFeeder, options ...Option) *Analyzer {
	options = append([]Option{WithLogger(logger.Nop())}, options...)
	analyzer := NewAnalyzer(f, options...)
	analyzer.now = func() time.Time { return testStart.AddDate(0, 0, 400) }
	return analyzer
}

func TestAnalyzeDefaults(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(400, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{Ticker: "aapl"})
	require.NoError(t, err)

	require.Equal(t, "AAPL", analysis.Ticker)
	require.Equal(t, "USD", analysis.Currency)
	require.Equal(t, feed.IntervalDaily, analysis.Interval)
	require.Equal(t, 14, analysis.Period)
	require.InDelta(t, 2.5, analysis.Multiplier, 1e-9)

	require.Equal(t, "AAPL", feeder.ticker)
	require.Equal(t, feed.IntervalDaily, feeder.interval)
	require.Equal(t, feeder.end.AddDate(0, 0, -365), feeder.start)

	// one trading year of daily bars
	require.Len(t, analysis.Points, 252)

	last := analysis.Points[len(analysis.Points)-1]
	require.Equal(t, "2026-02-04", last.Date)
	require.InDelta(t, 100.0, last.Close, 1e-9)
	require.True(t, last.StopPrice.Valid)
	require.False(t, last.SellSignal)

	require.True(t, analysis.CurrentATR.Valid)
	require.InDelta(t, 5.0, analysis.CurrentATR.Float64, 1e-9)
	require.True(t, analysis.VolatilityAmount.Valid)
	require.InDelta(t, 12.5, analysis.VolatilityAmount.Float64, 1e-9)

	require.Nil(t, analysis.ExitStrategy)
	require.Empty(t, analysis.ExitError)
}

func TestAnalyzeTickerNormalization(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(400, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{Ticker: "005930"})
	require.NoError(t, err)
	require.Equal(t, "005930.KS", analysis.Ticker)
	require.Equal(t, "KRW", analysis.Currency)
	require.Equal(t, "005930.KS", feeder.ticker)

	analysis, err = analyzer.Analyze(context.Background(), Request{Ticker: "  msft  "})
	require.NoError(t, err)
	require.Equal(t, "MSFT", analysis.Ticker)
	require.Equal(t, "USD", analysis.Currency)

	analysis, err = analyzer.Analyze(context.Background(), Request{Ticker: "035720.KQ"})
	require.NoError(t, err)
	require.Equal(t, "KRW", analysis.Currency)
}

func TestAnalyzeFetchWindowWidening(t *testing.T) {
	cases := []struct {
		days int
		span int
	}{
		{days: 100, span: 365},
		{days: 365, span: 365},
		{days: 500, span: 730},
		{days: 1000, span: 1825},
		{days: 4000, span: 7300},
	}

	for _, tc := range cases {
		feeder := &fakeFeeder{candles: flatBars(400, 100, 5)}
		analyzer := newTestAnalyzer(feeder)

		_, err := analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", Days: tc.days})
		require.NoError(t, err)
		require.Equal(t, feeder.end.AddDate(0, 0, -tc.span), feeder.start, "days %d", tc.days)
	}
}

func TestAnalyzeTradeTypeParameterDefaults(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(400, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", TradeType: "A"})
	require.NoError(t, err)
	require.Equal(t, 14, analysis.Period)
	require.InDelta(t, 3.0, analysis.Multiplier, 1e-9)

	analysis, err = analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", TradeType: "M"})
	require.NoError(t, err)
	require.Equal(t, 20, analysis.Period)
	require.InDelta(t, 2.5, analysis.Multiplier, 1e-9)

	// explicit values win over the template
	analysis, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "AAPL", TradeType: "B", Period: 30, Multiplier: 1.5,
	})
	require.NoError(t, err)
	require.Equal(t, 30, analysis.Period)
	require.InDelta(t, 1.5, analysis.Multiplier, 1e-9)

	_, err = analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", TradeType: "X"})
	var invalid *engine.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "trade_type", invalid.Param)
}

func TestAnalyzeResponseWindow(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(400, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	// 30 days of dailies would be ~21 bars, the floor lifts it to period+10
	analysis, err := analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", Days: 30})
	require.NoError(t, err)
	require.Len(t, analysis.Points, 24)

	analysis, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "AAPL", Days: 365, Interval: feed.IntervalWeekly,
	})
	require.NoError(t, err)
	require.Len(t, analysis.Points, 52)

	analysis, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "AAPL", Days: 3650, Interval: feed.IntervalMonthly,
	})
	require.NoError(t, err)
	require.Len(t, analysis.Points, 120)
}

func TestAnalyzeExitStrategy(t *testing.T) {
	// Trade type B on flat bars pins the ATR at 5: first target 111,
	// protective stop 90. Bar 27 tags the target, bar 28 closes through
	// the stop.
	candles := flatBars(30, 100, 5)
	candles[27].High = 112
	candles[28] = core.Candle{
		Ticker: "TEST", Time: testStart.AddDate(0, 0, 28),
		Open: 95, High: 96, Low: 84, Close: 85,
		Volume: 1000, Complete: true,
	}

	feeder := &fakeFeeder{candles: candles}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{
		Ticker:       "TEST",
		TradeType:    "B",
		EntryPrice:   100,
		EntryDate:    "2025-01-26",
		FirstTPRatio: 0.5,
	})
	require.NoError(t, err)
	require.Empty(t, analysis.ExitError)
	require.NotNil(t, analysis.ExitStrategy)

	exit := analysis.ExitStrategy
	require.Equal(t, "B", exit.TradeType)
	require.InDelta(t, 90.0, exit.StopLossPrice, 1e-9)
	require.Len(t, exit.ProfitTargets, 5)
	require.Len(t, exit.Sells, 2)
	require.Equal(t, "2025-01-28", exit.Sells[0].Date)
	require.Equal(t, "2025-01-29", exit.Sells[1].Date)
	require.InDelta(t, 100.5, exit.WeightedAvgSellPrice.Float64, 1e-9)
	require.InDelta(t, 0.5, exit.TotalReturnPct.Float64, 1e-9)

	payload, err := json.Marshal(analysis)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"exit_strategy":{`)
	require.Contains(t, string(payload), `"currency":"USD"`)
}

func TestAnalyzeExitFirstTPRatioDefault(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(30, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{
		Ticker:     "TEST",
		TradeType:  "B",
		EntryPrice: 100,
		EntryDate:  "2025-01-26",
	})
	require.NoError(t, err)
	require.NotNil(t, analysis.ExitStrategy)
	require.InDelta(t, 0.5, analysis.ExitStrategy.FirstTPRatio, 1e-9)
}

func TestAnalyzeExitEntryNotFound(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(30, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{
		Ticker:       "TEST",
		TradeType:    "B",
		EntryPrice:   100,
		EntryDate:    "2024-06-01",
		FirstTPRatio: 0.5,
	})
	require.NoError(t, err)

	require.Nil(t, analysis.ExitStrategy)
	require.Contains(t, analysis.ExitError, "2024-06-01")
	require.Len(t, analysis.Points, 30)
	require.True(t, analysis.CurrentATR.Valid)

	payload, err := json.Marshal(analysis)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"exit_strategy":null`)
}

func TestAnalyzeExitParamValidation(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(30, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	var invalid *engine.InvalidParameterError

	_, err := analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", EntryPrice: 100, EntryDate: "2025-01-26",
	})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "trade_type", invalid.Param)

	_, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", TradeType: "B", EntryPrice: -5, EntryDate: "2025-01-26",
	})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "entry_price", invalid.Param)

	_, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", TradeType: "B", EntryPrice: 100, EntryDate: "01/26/2025",
	})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "entry_date", invalid.Param)

	_, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", TradeType: "B", EntryPrice: 100, EntryDate: "2025-01-26", FirstTPRatio: 0.4,
	})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "first_tp_ratio", invalid.Param)
}

func TestAnalyzeValidatesRequest(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(30, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	var invalid *engine.InvalidParameterError

	_, err := analyzer.Analyze(context.Background(), Request{Ticker: "   "})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "ticker", invalid.Param)

	_, err = analyzer.Analyze(context.Background(), Request{Ticker: "AAPL", Interval: "15m"})
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "interval", invalid.Param)
	require.Zero(t, feeder.calls)
}

func TestAnalyzeFeederErrors(t *testing.T) {
	feeder := &fakeFeeder{err: core.ErrNoData}
	analyzer := newTestAnalyzer(feeder)

	_, err := analyzer.Analyze(context.Background(), Request{Ticker: "NOPE"})
	require.ErrorIs(t, err, core.ErrNoData)
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	feeder := &fakeFeeder{candles: flatBars(10, 100, 5)}
	analyzer := newTestAnalyzer(feeder)

	_, err := analyzer.Analyze(context.Background(), Request{Ticker: "AAPL"})
	var insufficient *engine.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 10, insufficient.Have)
	require.Equal(t, 15, insufficient.Need)
}

func TestAnalyzeNotifiesFreshSellSignal(t *testing.T) {
	// Flat bars hold the stop at 90, then the last bar closes at 85.
	candles := flatBars(40, 100, 5)
	candles[39] = core.Candle{
		Ticker: "TEST", Time: testStart.AddDate(0, 0, 39),
		Open: 100, High: 101, Low: 84, Close: 85,
		Volume: 1000, Complete: true,
	}

	notifier := &fakeNotifier{}
	feeder := &fakeFeeder{candles: candles}
	analyzer := newTestAnalyzer(feeder, WithNotifier(notifier))

	analysis, err := analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", Period: 14, Multiplier: 2.0,
	})
	require.NoError(t, err)

	last := analysis.Points[len(analysis.Points)-1]
	require.True(t, last.SellSignal)

	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "TEST")
	require.Contains(t, notifier.messages[0], "below")

	// one more bar after the breach and the signal is no longer fresh
	candles = append(candles, core.Candle{
		Ticker: "TEST", Time: testStart.AddDate(0, 0, 40),
		Open: 85, High: 86, Low: 84, Close: 85,
		Volume: 1000, Complete: true,
	})
	feeder.candles = candles

	_, err = analyzer.Analyze(context.Background(), Request{
		Ticker: "TEST", Period: 14, Multiplier: 2.0,
	})
	require.NoError(t, err)
	require.Len(t, notifier.messages, 1)
}

func TestSummaryRendersTables(t *testing.T) {
	candles := flatBars(30, 100, 5)
	candles[27].High = 112
	candles[28] = core.Candle{
		Ticker: "TEST", Time: testStart.AddDate(0, 0, 28),
		Open: 95, High: 96, Low: 84, Close: 85,
		Volume: 1000, Complete: true,
	}

	feeder := &fakeFeeder{candles: candles}
	analyzer := newTestAnalyzer(feeder)

	analysis, err := analyzer.Analyze(context.Background(), Request{
		Ticker:       "TEST",
		TradeType:    "B",
		EntryPrice:   100,
		EntryDate:    "2025-01-26",
		FirstTPRatio: 0.5,
	})
	require.NoError(t, err)

	summary := analysis.Summary()
	require.Contains(t, summary, "TEST")
	require.Contains(t, summary, "TP1 @ 111.00")
	require.Contains(t, summary, "Stop-loss @ 90.00")
	require.Contains(t, summary, "TOTAL")
	require.Contains(t, summary, "True range:")

	var hist strings.Builder
	require.NoError(t, analysis.TrueRangeHistogram(&hist, 5))
	require.NotEmpty(t, hist.String())
}

func TestTrueRangeHistogramNoData(t *testing.T) {
	analysis := &Analysis{}

	var hist strings.Builder
	err := analysis.TrueRangeHistogram(&hist, 5)
	require.True(t, errors.Is(err, core.ErrInsufficientData))
}
