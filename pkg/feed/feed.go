// Package feed provides candle sources: the Yahoo Finance chart API for
// stocks, Binance for crypto tickers, CSV files for offline work, and a
// caching decorator that can wrap any of them.
package feed

import (
	"fmt"
	"time"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// Intervals supported across all feeds. Resolutions below one day are out
// of scope for the analysis engine.
const (
	IntervalDaily   = "1d"
	IntervalWeekly  = "1wk"
	IntervalMonthly = "1mo"
)

// intervalSpan approximates one bar's calendar footprint, used to widen
// limit-based fetches before slicing.
var intervalSpan = map[string]time.Duration{
	IntervalDaily:   24 * time.Hour,
	IntervalWeekly:  7 * 24 * time.Hour,
	IntervalMonthly: 31 * 24 * time.Hour,
}

func checkInterval(interval string) error {
	if _, ok := intervalSpan[interval]; !ok {
		return fmt.Errorf("%w: %s", core.ErrInvalidInterval, interval)
	}
	return nil
}

// feedKey builds the lookup key for a ticker and interval
func feedKey(ticker, interval string) string {
	return fmt.Sprintf("%s--%s", ticker, interval)
}
