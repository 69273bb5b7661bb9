package download

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/feed"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

type fakeFeeder struct {
	candles []core.Candle
	err     error
}

func (f *fakeFeeder) CandlesByPeriod(_ context.Context, _, _ string, start, end time.Time) ([]core.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}

	var out []core.Candle
	for _, candle := range f.candles {
		if !candle.Time.Before(start) && !candle.Time.After(end) {
			out = append(out, candle)
		}
	}
	return out, nil
}

func (f *fakeFeeder) CandlesByLimit(_ context.Context, _, _ string, limit int) ([]core.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candles) < limit {
		return f.candles, nil
	}
	return f.candles[len(f.candles)-limit:], nil
}

func dailyCandles(start time.Time, n int) []core.Candle {
	candles := make([]core.Candle, n)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = core.Candle{
			Ticker:   "AAPL",
			Time:     start.AddDate(0, 0, i),
			Open:     price,
			Close:    price + 0.25,
			Low:      price - 1.5,
			High:     price + 2.25,
			Volume:   1000,
			Complete: true,
		}
	}
	return candles
}

func TestDownloadRoundTrip(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29)
	feeder := &fakeFeeder{candles: dailyCandles(start, 30)}

	outputPath := filepath.Join(t.TempDir(), "aapl.csv")
	downloader := NewDownloader(feeder, logger.Nop())

	err := downloader.Download(context.Background(), "AAPL", feed.IntervalDaily, outputPath, WithWindow(start, end))
	require.NoError(t, err)

	csvFeed, err := feed.NewCSVFeed(feed.CSVSource{Ticker: "AAPL", File: outputPath, Interval: feed.IntervalDaily})
	require.NoError(t, err)

	candles, err := csvFeed.CandlesByPeriod(context.Background(), "AAPL", feed.IntervalDaily, start, end)
	require.NoError(t, err)
	require.Len(t, candles, 30)

	require.True(t, candles[0].Time.Equal(start))
	require.Equal(t, 100.0, candles[0].Open)
	require.Equal(t, 129.25, candles[29].Close)
	require.Equal(t, 127.5, candles[29].Low)
	require.Equal(t, 131.25, candles[29].High)
}

func TestDownloadRejectsUnknownInterval(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "aapl.csv")
	downloader := NewDownloader(&fakeFeeder{}, logger.Nop())

	err := downloader.Download(context.Background(), "AAPL", "15m", outputPath)
	require.ErrorIs(t, err, core.ErrInvalidInterval)
	require.NoFileExists(t, outputPath)
}

func TestDownloadEmptyWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	outputPath := filepath.Join(t.TempDir(), "empty.csv")
	downloader := NewDownloader(&fakeFeeder{}, logger.Nop())

	err := downloader.Download(context.Background(), "AAPL", feed.IntervalDaily, outputPath, WithWindow(start, start.AddDate(0, 0, 10)))
	require.ErrorIs(t, err, core.ErrNoData)
}

func TestDownloadFeederError(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	outputPath := filepath.Join(t.TempDir(), "broken.csv")
	downloader := NewDownloader(&fakeFeeder{err: errors.New("boom")}, logger.Nop())

	err := downloader.Download(context.Background(), "AAPL", feed.IntervalDaily, outputPath, WithWindow(start, start.AddDate(0, 0, 5)))
	require.EqualError(t, err, "boom")
}
