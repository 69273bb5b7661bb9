package core

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the canonical date format for bar dates in requests,
// responses and CSV files.
const DateLayout = "2006-01-02"

// Candle represents a single OHLCV bar for a ticker
type Candle struct {
	Ticker   string
	Time     time.Time
	Open     float64
	Close    float64
	Low      float64
	High     float64
	Volume   float64
	Complete bool
}

// Date returns the candle time formatted as a plain calendar date
func (c Candle) Date() string { return c.Time.UTC().Format(DateLayout) }

// SameDay reports whether the candle falls on the given calendar day in UTC
func (c Candle) SameDay(t time.Time) bool {
	cy, cm, cd := c.Time.UTC().Date()
	ty, tm, td := t.UTC().Date()
	return cy == ty && cm == tm && cd == td
}

// Empty checks if the candle contains no significant data
func (c Candle) IsEmpty() bool { return c.Ticker == "" && c.Close == 0 && c.Open == 0 && c.Volume == 0 }

// ToSlice converts a candle to a string slice for serialization
// with the specified decimal precision
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.Time.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}
