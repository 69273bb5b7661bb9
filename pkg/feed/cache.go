package feed

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
	"github.com/tesius/trailing-stop-visualizer/pkg/metric"
)

// cachedFeeder answers from stored candle sets while they are fresh and
// wide enough, and falls back to the wrapped feeder otherwise. Storage
// failures only cost the caching, never the request.
type cachedFeeder struct {
	next  core.Feeder
	store core.CandleStorage
	ttl   time.Duration
	log   logger.Logger
	now   func() time.Time
}

// WithCache decorates a feeder with candle-set caching
func WithCache(next core.Feeder, store core.CandleStorage, ttl time.Duration, log logger.Logger) core.Feeder {
	return &cachedFeeder{
		next:  next,
		store: store,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// CandlesByPeriod serves the window from storage on a fresh covering hit
func (c *cachedFeeder) CandlesByPeriod(ctx context.Context, ticker, interval string, start, end time.Time) ([]core.Candle, error) {
	set, err := c.store.Get(ticker, interval)
	if err != nil {
		c.log.WithError(err).Warn("candle cache read failed")
	}

	if set != nil && set.Fresh(c.ttl, c.now()) && set.Covers(start, end) {
		metric.CacheLookups.WithLabelValues("hit").Inc()
		return lo.Filter(set.Candles, func(candle core.Candle, _ int) bool {
			return !candle.Time.Before(start) && !candle.Time.After(end)
		}), nil
	}

	metric.CacheLookups.WithLabelValues("miss").Inc()

	candles, err := c.next.CandlesByPeriod(ctx, ticker, interval, start, end)
	if err != nil {
		return nil, err
	}

	c.save(core.CandleSet{
		Ticker:   ticker,
		Interval: interval,
		From:     start,
		To:       end,
		StoredAt: c.now(),
		Candles:  candles,
	})

	return candles, nil
}

// CandlesByLimit serves the tail from storage when enough fresh bars are
// cached
func (c *cachedFeeder) CandlesByLimit(ctx context.Context, ticker, interval string, limit int) ([]core.Candle, error) {
	set, err := c.store.Get(ticker, interval)
	if err != nil {
		c.log.WithError(err).Warn("candle cache read failed")
	}

	if set != nil && set.Fresh(c.ttl, c.now()) && len(set.Candles) >= limit {
		metric.CacheLookups.WithLabelValues("hit").Inc()
		return set.Candles[len(set.Candles)-limit:], nil
	}

	metric.CacheLookups.WithLabelValues("miss").Inc()

	candles, err := c.next.CandlesByLimit(ctx, ticker, interval, limit)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		c.save(core.CandleSet{
			Ticker:   ticker,
			Interval: interval,
			From:     candles[0].Time,
			To:       candles[len(candles)-1].Time,
			StoredAt: c.now(),
			Candles:  candles,
		})
	}

	return candles, nil
}

func (c *cachedFeeder) save(set core.CandleSet) {
	if err := c.store.Save(set); err != nil {
		c.log.WithError(err).WithField("ticker", set.Ticker).Warn("candle cache write failed")
	}
}
