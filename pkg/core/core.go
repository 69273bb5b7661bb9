package core

import (
	"context"
	"time"
)

// Feeder provides historical candles for a ticker
type Feeder interface {
	CandlesByPeriod(ctx context.Context, ticker, interval string, start, end time.Time) ([]Candle, error)
	CandlesByLimit(ctx context.Context, ticker, interval string, limit int) ([]Candle, error)
}

// CandleStorage persists fetched candle sets keyed by ticker and interval
type CandleStorage interface {
	Save(set CandleSet) error
	Get(ticker, interval string) (*CandleSet, error)
	Close() error
}

// CandleSet is a stored window of candles with its fetch metadata
type CandleSet struct {
	Ticker   string    `json:"ticker"`
	Interval string    `json:"interval"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	StoredAt time.Time `json:"stored_at"`
	Candles  []Candle  `json:"candles"`
}

// Covers reports whether the stored window contains the requested range
func (s CandleSet) Covers(start, end time.Time) bool {
	return !s.From.After(start) && !s.To.Before(end)
}

// Fresh reports whether the set was stored within the given TTL
func (s CandleSet) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.StoredAt) <= ttl
}

type Notifier interface {
	Notify(string)
	OnError(err error)
}

type NotifierWithStart interface {
	Notifier
	Start()
}
