package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// BuntStorage implements the core.CandleStorage interface using BuntDB.
// Each candle set is stored as one JSON document keyed by ticker and
// interval, so a fresh fetch simply replaces the previous window.
type BuntStorage struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (core.CandleStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (core.CandleStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string) (core.CandleStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex("stored_index", "*", buntdb.IndexJSON("stored_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// setKey builds the document key for a ticker and interval
func setKey(ticker, interval string) string {
	return fmt.Sprintf("%s--%s", ticker, interval)
}

// Save stores a candle set, replacing any previous window for the same
// ticker and interval
func (b *BuntStorage) Save(set core.CandleSet) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("failed to marshal candle set: %w", err)
		}

		_, _, err = tx.Set(setKey(set.Ticker, set.Interval), string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store candle set: %w", err)
		}

		return nil
	})
}

// Get retrieves the stored candle set for a ticker and interval. A miss
// returns nil without an error.
func (b *BuntStorage) Get(ticker, interval string) (*core.CandleSet, error) {
	var set *core.CandleSet

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(setKey(ticker, interval))
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read candle set: %w", err)
		}

		set = &core.CandleSet{}
		if err := json.Unmarshal([]byte(value), set); err != nil {
			return fmt.Errorf("failed to unmarshal candle set: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return set, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
