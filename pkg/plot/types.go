package plot

import (
	"context"
	"time"

	trailingstop "github.com/tesius/trailing-stop-visualizer"
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// Analyzer produces an analysis for a request. Satisfied by the
// top-level trailingstop.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, req trailingstop.Request) (*trailingstop.Analysis, error)
}

// IndicatorMetric represents a single metric within an indicator
type IndicatorMetric struct {
	Name   string
	Color  string
	Style  string
	Values core.Series[float64]
	Time   []time.Time
}

// Indicator interface defines the methods required to implement a chart indicator
type Indicator interface {
	Name() string
	Overlay() bool
	Warmup() int
	Metrics() []IndicatorMetric
	Load(candles []core.Candle)
}

// indicatorMetric is the JSON serializable version of IndicatorMetric
type indicatorMetric struct {
	Name   string    `json:"name"`
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
	Color  string    `json:"color"`
	Style  string    `json:"style"`
}

// chartIndicator is the JSON serializable version of an Indicator
type chartIndicator struct {
	Name    string            `json:"name"`
	Overlay bool              `json:"overlay"`
	Metrics []indicatorMetric `json:"metrics"`
}

// analyzeResponse decorates an analysis with the configured chart overlays
type analyzeResponse struct {
	*trailingstop.Analysis
	Indicators []chartIndicator `json:"indicators,omitempty"`
}
