package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches bars from the Yahoo Finance chart API. Transient upstream
// failures are retried with exponential backoff before giving up.
type Yahoo struct {
	client   *http.Client
	baseURL  string
	log      logger.Logger
	maxTries int
	minWait  time.Duration
	maxWait  time.Duration
}

// YahooOption is a function that configures the Yahoo feed
type YahooOption func(*Yahoo)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.client = client
	}
}

// WithBaseURL points the feed at a different chart API host
func WithBaseURL(base string) YahooOption {
	return func(y *Yahoo) {
		y.baseURL = base
	}
}

// WithRetry tunes the retry loop for transient upstream failures
func WithRetry(tries int, minWait, maxWait time.Duration) YahooOption {
	return func(y *Yahoo) {
		y.maxTries = tries
		y.minWait = minWait
		y.maxWait = maxWait
	}
}

// NewYahoo creates a Yahoo Finance feed
func NewYahoo(log logger.Logger, options ...YahooOption) *Yahoo {
	yahoo := &Yahoo{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  defaultYahooBaseURL,
		log:      log,
		maxTries: 4,
		minWait:  500 * time.Millisecond,
		maxWait:  8 * time.Second,
	}

	for _, option := range options {
		option(yahoo)
	}

	return yahoo
}

// yahooChartResponse mirrors the chart API envelope. Quote arrays carry
// null entries for non-trading rows, hence the pointers.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CandlesByPeriod fetches bars between start and end
func (y *Yahoo) CandlesByPeriod(ctx context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}

	wait := &backoff.Backoff{
		Min:    y.minWait,
		Max:    y.maxWait,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= y.maxTries; attempt++ {
		candles, retryable, err := y.fetchChart(ctx, ticker, interval, start, end)
		if err == nil {
			return candles, nil
		}

		lastErr = err
		if !retryable || attempt == y.maxTries {
			break
		}

		delay := wait.Duration()
		y.log.WithFields(map[string]any{
			"ticker":  ticker,
			"attempt": attempt,
			"wait":    delay.String(),
		}).Warnf("yahoo fetch failed, retrying: %v", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// CandlesByLimit fetches the most recent bars up to limit
func (y *Yahoo) CandlesByLimit(ctx context.Context, ticker, interval string, limit int) ([]core.Candle, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}

	// Doubled window leaves room for weekends and holidays.
	end := time.Now().UTC()
	start := end.Add(-time.Duration(2*limit) * intervalSpan[interval])

	candles, err := y.CandlesByPeriod(ctx, ticker, interval, start, end)
	if err != nil {
		return nil, err
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}

// fetchChart performs one chart API call. The second return value tells
// the caller whether a failure is worth retrying.
func (y *Yahoo) fetchChart(ctx context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, bool, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	query := req.URL.Query()
	query.Set("period1", fmt.Sprintf("%d", start.Unix()))
	query.Set("period2", fmt.Sprintf("%d", end.Unix()))
	query.Set("interval", interval)
	query.Set("events", "history")
	req.URL.RawQuery = query.Encode()
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trailstop/1.0)")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, false, fmt.Errorf("failed to decode yahoo response: %w", err)
	}

	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, false, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
		}
		return nil, false, fmt.Errorf("yahoo error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, false, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]core.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		candle := core.Candle{
			Ticker:   ticker,
			Time:     time.Unix(ts, 0).UTC(),
			Open:     *quote.Open[i],
			High:     *quote.High[i],
			Low:      *quote.Low[i],
			Close:    *quote.Close[i],
			Complete: true,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			candle.Volume = *quote.Volume[i]
		}

		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, false, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	}

	return candles, false, nil
}
