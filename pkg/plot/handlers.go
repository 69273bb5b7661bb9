package plot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	trailingstop "github.com/tesius/trailing-stop-visualizer"
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/engine"
	"github.com/tesius/trailing-stop-visualizer/pkg/metric"
)

// handleAnalyze runs one analysis from query parameters and returns the
// full JSON response
func (c *Chart) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()

	req, err := parseRequest(r)
	if err != nil {
		c.writeError(w, "/analyze", err)
		return
	}

	log := c.log.WithFields(map[string]any{
		"request_id": requestID,
		"ticker":     req.Ticker,
	})
	log.Debug("analyze request")

	analysis, err := c.analyzer.Analyze(r.Context(), req)
	if err != nil {
		log.WithError(err).Warn("analyze failed")
		c.writeError(w, "/analyze", err)
		return
	}

	c.rememberTicker(analysis.Ticker)

	response := analyzeResponse{Analysis: analysis}
	if len(c.indicators) > 0 {
		response.Indicators = c.loadIndicators(analysis.Points)
	}

	c.writeJSON(w, "/analyze", http.StatusOK, response)
	metric.RequestDuration.WithLabelValues("/analyze").Observe(time.Since(started).Seconds())
}

// handleHealth handles health check requests
func (c *Chart) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, "/health", http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex renders the chart page
func (c *Chart) handleIndex(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	tickers := c.recent()

	w.Header().Set("Content-Type", "text/html")
	err := c.indexHTML.Execute(w, map[string]interface{}{
		"ticker":  ticker,
		"tickers": tickers,
	})
	if err != nil {
		c.log.Error("Template execution failed: ", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metric.RequestsTotal.WithLabelValues("/", strconv.Itoa(http.StatusOK)).Inc()
}

// handleScript serves the transpiled chart script
func (c *Chart) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	fmt.Fprint(w, c.scriptContent)
}

// loadIndicators recomputes the configured overlays against the response
// window and shapes them for the chart script
func (c *Chart) loadIndicators(points []trailingstop.Point) []chartIndicator {
	candles := make([]core.Candle, 0, len(points))
	for _, p := range points {
		barTime, err := time.Parse(core.DateLayout, p.Date)
		if err != nil {
			c.log.WithError(err).Warnf("skipping point with bad date %q", p.Date)
			continue
		}
		candles = append(candles, core.Candle{
			Time:   barTime,
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		})
	}

	indicators := make([]chartIndicator, 0, len(c.indicators))
	for _, ind := range c.indicators {
		ind.Load(candles)

		plotted := chartIndicator{Name: ind.Name(), Overlay: ind.Overlay()}
		for _, m := range ind.Metrics() {
			dates := make([]string, len(m.Time))
			for i, t := range m.Time {
				dates[i] = t.Format(core.DateLayout)
			}
			plotted.Metrics = append(plotted.Metrics, indicatorMetric{
				Name:   m.Name,
				Dates:  dates,
				Values: m.Values.Values(),
				Color:  m.Color,
				Style:  m.Style,
			})
		}
		indicators = append(indicators, plotted)
	}

	return indicators
}

func (c *Chart) writeJSON(w http.ResponseWriter, route string, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		c.log.WithError(err).Error("JSON encoding failed")
	}
	metric.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (c *Chart) writeError(w http.ResponseWriter, route string, err error) {
	c.writeJSON(w, route, statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps the engine and feed error taxonomy onto HTTP
// status codes
func statusForError(err error) int {
	var invalid *engine.InvalidParameterError
	var insufficient *engine.InsufficientDataError

	switch {
	case errors.As(err, &invalid), errors.Is(err, core.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.As(err, &insufficient), errors.Is(err, core.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseRequest builds an analysis request from the query string
func parseRequest(r *http.Request) (trailingstop.Request, error) {
	q := r.URL.Query()
	req := trailingstop.Request{
		Ticker:    q.Get("ticker"),
		Interval:  q.Get("interval"),
		TradeType: q.Get("trade_type"),
		EntryDate: q.Get("entry_date"),
	}

	var err error
	if req.Period, err = intParam(q, "period"); err != nil {
		return req, err
	}
	if req.Days, err = intParam(q, "days"); err != nil {
		return req, err
	}
	if req.Multiplier, err = floatParam(q, "multiplier"); err != nil {
		return req, err
	}
	if req.EntryPrice, err = floatParam(q, "entry_price"); err != nil {
		return req, err
	}
	if req.FirstTPRatio, err = floatParam(q, "first_tp_ratio"); err != nil {
		return req, err
	}

	return req, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &engine.InvalidParameterError{Param: name, Reason: "must be an integer"}
	}
	return v, nil
}

func floatParam(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &engine.InvalidParameterError{Param: name, Reason: "must be a number"}
	}
	return v, nil
}
