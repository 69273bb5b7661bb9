package core

import "errors"

var (
	// ErrNoData indicates the source returned no candles for the ticker
	ErrNoData = errors.New("no data for ticker")

	// ErrInsufficientData indicates fewer candles than the caller asked for
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidInterval indicates an interval outside 1d, 1wk and 1mo
	ErrInvalidInterval = errors.New("invalid interval")
)
