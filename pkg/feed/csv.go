package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// defaultHeaderMap defines the standard CSV column mapping
var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// CSVSource points a ticker at a local bar history file
type CSVSource struct {
	Ticker   string
	File     string
	Interval string
}

// CSVFeed serves candles from local CSV files. Daily sources are rolled
// up into weekly and monthly series at load time, so every supported
// interval answers from memory.
type CSVFeed struct {
	sources map[string]CSVSource
	candles map[string][]core.Candle
}

// NewCSVFeed loads all source files and prepares the derived intervals
func NewCSVFeed(sources ...CSVSource) (*CSVFeed, error) {
	feed := &CSVFeed{
		sources: make(map[string]CSVSource),
		candles: make(map[string][]core.Candle),
	}

	for _, source := range sources {
		if err := checkInterval(source.Interval); err != nil {
			return nil, err
		}

		candles, err := readCandlesFromCSV(source)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", source.File, err)
		}

		feed.sources[source.Ticker] = source
		feed.candles[feedKey(source.Ticker, source.Interval)] = candles

		if source.Interval == IntervalDaily {
			feed.candles[feedKey(source.Ticker, IntervalWeekly)] = resampleCandles(candles, IntervalWeekly)
			feed.candles[feedKey(source.Ticker, IntervalMonthly)] = resampleCandles(candles, IntervalMonthly)
		}
	}

	return feed, nil
}

// readCandlesFromCSV reads and parses a bar history file
func readCandlesFromCSV(source CSVSource) ([]core.Candle, error) {
	csvFile, err := os.Open(source.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvLines) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoData, source.Ticker)
	}

	headerMap, hasHeaderRow := parseHeaders(csvLines[0])
	if hasHeaderRow {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for _, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, source.Ticker)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseHeaders detects an optional header row and maps column names to
// their positions. A file without headers uses the default layout.
func parseHeaders(headers []string) (map[string]int, bool) {
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
	}

	return headerMap, true
}

// parseCandleFromLine builds one candle from a CSV row. The time column
// accepts unix seconds or a plain date.
func parseCandleFromLine(line []string, headerMap map[string]int, ticker string) (core.Candle, error) {
	barTime, err := parseBarTime(line[headerMap["time"]])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Ticker:   ticker,
		Time:     barTime,
		Complete: true,
	}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Candle{}, err
	}

	return candle, nil
}

func parseBarTime(field string) (time.Time, error) {
	if timestamp, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.Unix(timestamp, 0).UTC(), nil
	}
	return time.Parse(core.DateLayout, field)
}

// periodKey assigns each candle to its weekly or monthly bucket
func periodKey(t time.Time, interval string) string {
	switch interval {
	case IntervalWeekly:
		year, week := t.UTC().ISOWeek()
		return fmt.Sprintf("%d-w%02d", year, week)
	case IntervalMonthly:
		return t.UTC().Format("2006-01")
	default:
		return t.UTC().Format(core.DateLayout)
	}
}

// resampleCandles rolls consecutive daily bars into the target interval.
// Each bucket opens with its first bar, closes with its last and takes
// the extremes and summed volume in between.
func resampleCandles(daily []core.Candle, interval string) []core.Candle {
	if len(daily) == 0 {
		return nil
	}

	result := make([]core.Candle, 0, len(daily)/5)

	current := daily[0]
	currentKey := periodKey(daily[0].Time, interval)

	for _, candle := range daily[1:] {
		key := periodKey(candle.Time, interval)
		if key != currentKey {
			result = append(result, current)
			current = candle
			currentKey = key
			continue
		}

		current.High = math.Max(current.High, candle.High)
		current.Low = math.Min(current.Low, candle.Low)
		current.Close = candle.Close
		current.Volume += candle.Volume
	}

	return append(result, current)
}

// CandlesByPeriod returns the candles inside the requested window
func (c *CSVFeed) CandlesByPeriod(_ context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, error) {
	candles, err := c.lookup(ticker, interval)
	if err != nil {
		return nil, err
	}

	return lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return !candle.Time.Before(start) && !candle.Time.After(end)
	}), nil
}

// CandlesByLimit returns the most recent candles up to limit
func (c *CSVFeed) CandlesByLimit(_ context.Context, ticker, interval string, limit int) ([]core.Candle, error) {
	candles, err := c.lookup(ticker, interval)
	if err != nil {
		return nil, err
	}

	if len(candles) < limit {
		return nil, fmt.Errorf("%w: %s has %d bars, want %d", core.ErrInsufficientData, ticker, len(candles), limit)
	}

	return candles[len(candles)-limit:], nil
}

func (c *CSVFeed) lookup(ticker, interval string) ([]core.Candle, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}

	candles, ok := c.candles[feedKey(ticker, interval)]
	if !ok || len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	}

	return candles, nil
}
