package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

// binanceIntervals translates the shared interval names into the
// exchange's kline notation.
var binanceIntervals = map[string]string{
	IntervalDaily:   "1d",
	IntervalWeekly:  "1w",
	IntervalMonthly: "1M",
}

// Binance serves crypto tickers through the exchange klines endpoint
type Binance struct {
	client *binance.Client
	log    logger.Logger
}

// BinanceOption is a function that configures the Binance feed
type BinanceOption func(*Binance)

// WithBinanceCredentials sets API credentials. Public kline data works
// without them.
func WithBinanceCredentials(key, secret string) BinanceOption {
	return func(b *Binance) {
		b.client = binance.NewClient(key, secret)
	}
}

// WithBinanceTestnet switches the client to the testnet endpoints
func WithBinanceTestnet() BinanceOption {
	return func(_ *Binance) {
		binance.UseTestnet = true
	}
}

// NewBinance creates a Binance feed and checks connectivity
func NewBinance(ctx context.Context, log logger.Logger, options ...BinanceOption) (*Binance, error) {
	feed := &Binance{
		client: binance.NewClient("", ""),
		log:    log,
	}

	for _, option := range options {
		option(feed)
	}

	if err := feed.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	return feed, nil
}

// CandlesByPeriod fetches klines between start and end
func (b *Binance) CandlesByPeriod(ctx context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, error) {
	klineInterval, err := toBinanceInterval(interval)
	if err != nil {
		return nil, err
	}

	klines, err := b.client.NewKlinesService().
		Symbol(ticker).
		Interval(klineInterval).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines fail: %w", err)
	}

	if len(klines) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	}

	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, klineToCandle(ticker, *k))
	}

	return candles, nil
}

// CandlesByLimit fetches the most recent complete klines up to limit
func (b *Binance) CandlesByLimit(ctx context.Context, ticker, interval string, limit int) ([]core.Candle, error) {
	klineInterval, err := toBinanceInterval(interval)
	if err != nil {
		return nil, err
	}

	// The exchange includes the still-forming kline, so fetch one extra
	// and drop it.
	klines, err := b.client.NewKlinesService().
		Symbol(ticker).
		Interval(klineInterval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines fail: %w", err)
	}

	if len(klines) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoData, ticker)
	}

	klines = klines[:len(klines)-1]

	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, klineToCandle(ticker, *k))
	}

	return candles, nil
}

func toBinanceInterval(interval string) (string, error) {
	if err := checkInterval(interval); err != nil {
		return "", err
	}
	return binanceIntervals[interval], nil
}

// klineToCandle converts an exchange kline to a core.Candle
func klineToCandle(ticker string, k binance.Kline) core.Candle {
	candle := core.Candle{
		Ticker:   ticker,
		Time:     time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC(),
		Complete: true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
