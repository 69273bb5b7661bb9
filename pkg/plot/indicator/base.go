package indicator

import (
	"fmt"
	"time"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/plot"
)

type SeriesType int8

const (
	Close SeriesType = iota
	Open
	High
	Low
)

// FromCandles extracts the selected price series from the bars
func (s SeriesType) FromCandles(candles []core.Candle) ([]float64, error) {
	values := make([]float64, len(candles))
	for i, c := range candles {
		switch s {
		case Close:
			values[i] = c.Close
		case Open:
			values[i] = c.Open
		case High:
			values[i] = c.High
		case Low:
			values[i] = c.Low
		default:
			return nil, fmt.Errorf("invalid series type %d", s)
		}
	}
	return values, nil
}

// BaseIndicator provides common functionality for all indicators
type BaseIndicator struct {
	Period int
	Color  string
	Series SeriesType
	Time   []time.Time
}

// CreateMetric creates a standard indicator metric
func CreateMetric(style, color string, values core.Series[float64], time []time.Time, name ...string) plot.IndicatorMetric {
	metric := plot.IndicatorMetric{
		Style:  style,
		Color:  color,
		Values: values,
		Time:   time,
	}

	if len(name) > 0 {
		metric.Name = name[0]
	}

	return metric
}

// HasWarmup checks if the bar window has enough points for the indicator period
func HasWarmup(candles []core.Candle, period int) bool {
	return len(candles) >= period
}

// CandleTimes collects the bar times for metric alignment
func CandleTimes(candles []core.Candle) []time.Time {
	times := make([]time.Time, len(candles))
	for i, c := range candles {
		times[i] = c.Time
	}
	return times
}

// TrimData trims the warmup prefix so only computed values are drawn
func TrimData(data core.Series[float64], time []time.Time, period int) (core.Series[float64], []time.Time) {
	if period <= 0 || len(data) <= period {
		return data, time
	}
	return data[period:], time[period:]
}
