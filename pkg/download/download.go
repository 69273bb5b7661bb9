// Package download exports bar history from any feed to CSV files the
// csv feed can read back.
package download

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/feed"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

const (
	batchSize = 500
)

// CSV header names, matching the layout the csv feed expects
var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader exports historical candles from a feed to CSV files
type Downloader struct {
	feeder core.Feeder
	log    logger.Logger
}

// NewDownloader creates a new downloader backed by the given feed
func NewDownloader(feeder core.Feeder, log logger.Logger) Downloader {
	return Downloader{
		feeder: feeder,
		log:    log,
	}
}

// Parameters defines the time range for data download
type Parameters struct {
	Start time.Time
	End   time.Time
}

// Option is a function type for configuring download parameters
type Option func(*Parameters)

// WithWindow sets specific start and end times for the download
func WithWindow(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithDays sets the download period to a specific number of days from now
func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.Start = time.Now().AddDate(0, 0, -days)
		parameters.End = time.Now()
	}
}

// barDuration resolves the calendar footprint of one bar. Months use a
// thirty day approximation, which only affects batch sizing.
func barDuration(interval string) (time.Duration, error) {
	span, ok := map[string]string{
		feed.IntervalDaily:   "1d",
		feed.IntervalWeekly:  "1w",
		feed.IntervalMonthly: "30d",
	}[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrInvalidInterval, interval)
	}
	return str2duration.ParseDuration(span)
}

// Download fetches candle data from the feed and saves it to a CSV file
func (d Downloader) Download(ctx context.Context, ticker, interval, outputPath string, options ...Option) error {
	barSpan, err := barDuration(interval)
	if err != nil {
		return err
	}

	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	parameters := initializeParameters()
	for _, option := range options {
		option(parameters)
	}
	normalizeTimeParameters(parameters)

	candleCount := int(parameters.End.Sub(parameters.Start)/barSpan) + 1

	d.log.Infof("Downloading up to %d bars of %s for %s", candleCount, interval, ticker)

	writer := csv.NewWriter(recordFile)
	progressBar := progressbar.Default(int64(candleCount))

	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	written, err := d.downloadBatches(
		ctx,
		ticker,
		interval,
		parameters.Start,
		parameters.End,
		barSpan,
		writer,
		progressBar,
	)
	if err != nil {
		return err
	}

	if err := progressBar.Close(); err != nil {
		d.log.Warnf("Failed to close progress bar: %s", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	if written == 0 {
		return fmt.Errorf("%w: %s %s in the requested window", core.ErrNoData, ticker, interval)
	}

	d.log.Infof("Wrote %d bars to %s", written, outputPath)
	return nil
}

// initializeParameters creates default parameters covering the last year
func initializeParameters() *Parameters {
	now := time.Now()
	return &Parameters{
		Start: now.AddDate(0, 0, -365),
		End:   now,
	}
}

// normalizeTimeParameters adjusts time parameters to appropriate boundaries
func normalizeTimeParameters(parameters *Parameters) {
	parameters.Start = time.Date(
		parameters.Start.Year(),
		parameters.Start.Month(),
		parameters.Start.Day(),
		0, 0, 0, 0, time.UTC,
	)

	now := time.Now()
	if now.Sub(parameters.End) > 0 {
		parameters.End = time.Date(
			parameters.End.Year(),
			parameters.End.Month(),
			parameters.End.Day(),
			0, 0, 0, 0, time.UTC,
		)
	} else {
		parameters.End = now
	}
}

// downloadBatches walks the request window in fixed size slices so large
// histories never sit in memory at once
func (d Downloader) downloadBatches(
	ctx context.Context,
	ticker string,
	interval string,
	start time.Time,
	end time.Time,
	barSpan time.Duration,
	writer *csv.Writer,
	progressBar *progressbar.ProgressBar,
) (int, error) {
	written := 0
	precision := -1

	for batchStart := start; batchStart.Before(end); batchStart = batchStart.Add(barSpan * batchSize) {
		batchEnd := calculateBatchEnd(batchStart, barSpan, end)

		candles, err := d.feeder.CandlesByPeriod(ctx, ticker, interval, batchStart, batchEnd)
		if err != nil {
			return written, err
		}

		if precision < 0 && len(candles) > 0 {
			precision = pricePrecision(candles)
		}

		if err := writeCandles(writer, candles, precision); err != nil {
			return written, err
		}

		written += len(candles)

		if err := progressBar.Add(len(candles)); err != nil {
			d.log.Warnf("Failed to update progress bar: %s", err)
		}
	}

	return written, nil
}

// calculateBatchEnd determines the end time for a batch
func calculateBatchEnd(batchStart time.Time, barSpan time.Duration, totalEnd time.Time) time.Time {
	potentialEnd := batchStart.Add(barSpan * batchSize)

	// Subtract 1 second to avoid overlapping with the next batch's start
	if potentialEnd.Before(totalEnd) {
		return potentialEnd.Add(-1 * time.Second)
	}

	return totalEnd
}

// pricePrecision picks enough decimal places to represent every price in
// the sample without loss
func pricePrecision(candles []core.Candle) int {
	precision := int64(2)
	for _, candle := range candles {
		for _, value := range []float64{candle.Open, candle.Close, candle.Low, candle.High} {
			if places := core.NumDecPlaces(value); places > precision {
				precision = places
			}
		}
	}
	return int(precision)
}

// writeCandles writes a batch of candles to the CSV writer
func writeCandles(writer *csv.Writer, candles []core.Candle, precision int) error {
	for _, candle := range candles {
		if err := writer.Write(candle.ToSlice(precision)); err != nil {
			return err
		}
	}
	return nil
}
