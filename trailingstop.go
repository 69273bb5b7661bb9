package trailingstop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/engine"
	"github.com/tesius/trailing-stop-visualizer/pkg/feed"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
	"github.com/tesius/trailing-stop-visualizer/pkg/metric"

	"github.com/samber/lo"
)

// DefaultLog is the package-wide fallback logger, configured from the
// environment in init.go.
var DefaultLog logger.Logger

const (
	defaultDays       = 365
	defaultPeriod     = 14
	defaultMultiplier = 2.5
	defaultFirstTP    = 0.5

	// Korean exchange suffix appended to all-digit tickers
	koreanSuffix = ".KS"

	// Upper bound for the widened fetch window, roughly 20 years
	maxSpanDays = 7300
)

// barsPerYear approximates how many bars one calendar year produces for
// each supported interval. Used to size the response window.
var barsPerYear = map[string]int{
	feed.IntervalDaily:   252,
	feed.IntervalWeekly:  52,
	feed.IntervalMonthly: 12,
}

// Request describes one analysis. Zero values select the defaults: 365
// days of daily bars, period/multiplier from the trade type when one is
// given, otherwise 14 and 2.5. Exit simulation runs when EntryPrice or
// EntryDate is set; both plus TradeType are then required.
type Request struct {
	Ticker       string
	Interval     string
	Days         int
	Period       int
	Multiplier   float64
	TradeType    string
	EntryPrice   float64
	EntryDate    string // formatted as 2006-01-02
	FirstTPRatio float64
}

// Point is one response bar with its indicator values. StopPrice stays
// null until the smoothing window has filled.
type Point struct {
	Date       string       `json:"date"`
	Open       float64      `json:"open"`
	High       float64      `json:"high"`
	Low        float64      `json:"low"`
	Close      float64      `json:"close"`
	Volume     float64      `json:"volume"`
	TrueRange  engine.Value `json:"tr"`
	ATR        engine.Value `json:"atr"`
	StopPrice  engine.Value `json:"stop_price"`
	SellSignal bool         `json:"sell_signal"`
}

// Analysis is the full result for one request.
type Analysis struct {
	Ticker           string               `json:"ticker"`
	Currency         string               `json:"currency"`
	Interval         string               `json:"interval"`
	Period           int                  `json:"period"`
	Multiplier       float64              `json:"multiplier"`
	CurrentATR       engine.Value         `json:"current_atr"`
	VolatilityAmount engine.Value         `json:"volatility_amount"`
	Points           []Point              `json:"data"`
	ExitStrategy     *engine.ExitStrategy `json:"exit_strategy"`
	ExitError        string               `json:"exit_error,omitempty"`
}

// Analyzer runs the indicator chain against bars pulled from a feeder
// and assembles the response. It holds no per-request state and is safe
// for concurrent use.
type Analyzer struct {
	feeder   core.Feeder
	log      logger.Logger
	notifier core.Notifier
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer reading bars from the given feeder.
func NewAnalyzer(feeder core.Feeder, options ...Option) *Analyzer {
	analyzer := &Analyzer{
		feeder: feeder,
		log:    DefaultLog,
		now:    time.Now,
	}

	for _, option := range options {
		option(analyzer)
	}

	return analyzer
}

// Analyze fetches history for the requested ticker, computes true range,
// ATR and the trailing stop, and optionally simulates the exit strategy
// for a hypothetical entry.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	started := time.Now()

	analysis, err := a.analyze(ctx, req)

	metric.AnalysisDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metric.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metric.AnalysesTotal.WithLabelValues("ok").Inc()

	return analysis, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (*Analysis, error) {
	ticker := NormalizeTicker(req.Ticker)
	if ticker == "" {
		return nil, &engine.InvalidParameterError{Param: "ticker", Reason: "must not be empty"}
	}

	interval := req.Interval
	if interval == "" {
		interval = feed.IntervalDaily
	}
	if _, ok := barsPerYear[interval]; !ok {
		return nil, &engine.InvalidParameterError{
			Param:  "interval",
			Reason: fmt.Sprintf("must be one of %s, %s, %s", feed.IntervalDaily, feed.IntervalWeekly, feed.IntervalMonthly),
		}
	}

	days := req.Days
	if days <= 0 {
		days = defaultDays
	}

	period, multiplier, err := resolveParams(req)
	if err != nil {
		return nil, err
	}

	end := a.now()
	start := end.AddDate(0, 0, -fetchSpanDays(days))

	a.log.WithFields(map[string]any{
		"ticker":   ticker,
		"interval": interval,
		"from":     start.Format(core.DateLayout),
	}).Debug("fetching candle history")

	candles, err := a.feeder.CandlesByPeriod(ctx, ticker, interval, start, end)
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(candles, period, multiplier)
	if err != nil {
		return nil, err
	}

	offset := len(candles) - responseBars(interval, days, period)
	if offset < 0 {
		offset = 0
	}

	points := lo.Map(candles[offset:], func(c core.Candle, i int) Point {
		j := offset + i
		p := Point{
			Date:      c.Date(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			TrueRange: result.TrueRange[j],
			ATR:       result.ATR[j],
			StopPrice: result.Stop[j],
		}
		p.SellSignal = p.StopPrice.Valid && c.Close < p.StopPrice.Float64
		return p
	})

	analysis := &Analysis{
		Ticker:           ticker,
		Currency:         currencyFor(ticker),
		Interval:         interval,
		Period:           period,
		Multiplier:       multiplier,
		CurrentATR:       result.CurrentATR(),
		VolatilityAmount: result.VolatilityAmount(),
		Points:           points,
	}

	if exitRequested(req) {
		if err := a.buildExit(candles, result, req, analysis); err != nil {
			return nil, err
		}
	}

	a.maybeNotify(ticker, points)

	return analysis, nil
}

// buildExit validates the entry parameters and attaches the simulated
// exit strategy. A missing entry bar keeps the indicator portion of the
// response and reports the problem in ExitError instead of failing.
func (a *Analyzer) buildExit(candles []core.Candle, result *engine.Result, req Request, analysis *Analysis) error {
	if req.TradeType == "" {
		return &engine.InvalidParameterError{Param: "trade_type", Reason: "required for exit simulation"}
	}
	if req.EntryPrice <= 0 {
		return &engine.InvalidParameterError{Param: "entry_price", Reason: "must be positive"}
	}

	entryDate, err := time.Parse(core.DateLayout, req.EntryDate)
	if err != nil {
		return &engine.InvalidParameterError{Param: "entry_date", Reason: "must be formatted as " + core.DateLayout}
	}

	firstTP := req.FirstTPRatio
	if firstTP == 0 {
		firstTP = defaultFirstTP
	}

	exit, err := engine.BuildExitStrategy(candles, result, engine.ExitParams{
		TradeType:    req.TradeType,
		Side:         engine.Long,
		EntryPrice:   req.EntryPrice,
		EntryDate:    entryDate,
		FirstTPRatio: firstTP,
	})
	if err != nil {
		var notFound *engine.EntryNotFoundError
		if errors.As(err, &notFound) {
			a.log.WithField("ticker", analysis.Ticker).Warnf("exit simulation skipped: %v", err)
			analysis.ExitError = err.Error()
			return nil
		}
		return err
	}

	analysis.ExitStrategy = exit
	return nil
}

// maybeNotify fires the registered notifier when the latest bar closed
// below the trailing stop and the bar before it did not.
func (a *Analyzer) maybeNotify(ticker string, points []Point) {
	if a.notifier == nil || len(points) < 2 {
		return
	}

	last := points[len(points)-1]
	prev := points[len(points)-2]
	if !last.StopPrice.Valid || !prev.StopPrice.Valid {
		return
	}

	closes := core.Series[float64]{prev.Close, last.Close}
	stops := core.Series[float64]{prev.StopPrice.Float64, last.StopPrice.Float64}
	if closes.Crossunder(stops) {
		a.notifier.Notify(fmt.Sprintf(
			"%s closed below its trailing stop: %.2f < %.2f on %s",
			ticker, last.Close, last.StopPrice.Float64, last.Date,
		))
	}
}

// resolveParams picks the smoothing period and stop multiplier, falling
// back to the trade-type template and then the package defaults.
func resolveParams(req Request) (int, float64, error) {
	period := req.Period
	multiplier := req.Multiplier

	if req.TradeType != "" {
		t, err := engine.TradeTypeByCode(req.TradeType)
		if err != nil {
			return 0, 0, err
		}
		if period <= 0 {
			period = t.Period
		}
		if multiplier <= 0 {
			multiplier = t.Multiplier
		}
	}

	if period <= 0 {
		period = defaultPeriod
	}
	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}

	return period, multiplier, nil
}

// exitRequested reports whether the request carries entry intent. A
// trade type alone only selects parameter defaults.
func exitRequested(req Request) bool {
	return req.EntryPrice != 0 || req.EntryDate != ""
}

// NormalizeTicker uppercases the symbol and maps all-digit Korean codes
// to their Yahoo exchange suffix. Analyze applies it to every request;
// callers that key bars by ticker themselves want the same form.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t != "" && isAllDigits(t) {
		return t + koreanSuffix
	}
	return t
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// currencyFor reports the quote currency implied by the ticker suffix.
func currencyFor(ticker string) string {
	if strings.HasSuffix(ticker, ".KS") || strings.HasSuffix(ticker, ".KQ") {
		return "KRW"
	}
	return "USD"
}

// fetchSpanDays widens the fetch window so the smoothing warmup falls
// outside the requested range, mirroring the provider range steps.
func fetchSpanDays(days int) int {
	switch {
	case days <= 365:
		return 365
	case days <= 730:
		return 730
	case days <= 1825:
		return 1825
	default:
		return maxSpanDays
	}
}

// responseBars converts the requested day span into a bar count for the
// interval, never below period+10 so the stop line is visible.
func responseBars(interval string, days, period int) int {
	bars := int(math.Ceil(float64(days) / 365.0 * float64(barsPerYear[interval])))
	if min := period + 10; bars < min {
		bars = min
	}
	return bars
}
