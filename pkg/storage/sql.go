package storage

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
)

// candleSetModel is the relational shape of a stored window. Candles are
// kept as rows so the window survives across restarts and can be pruned
// with plain SQL.
type candleSetModel struct {
	ID       uint   `gorm:"primaryKey"`
	Ticker   string `gorm:"index:idx_ticker_interval,unique"`
	Interval string `gorm:"index:idx_ticker_interval,unique"`
	From     time.Time
	To       time.Time
	StoredAt time.Time
	Candles  []candleModel `gorm:"constraint:OnDelete:CASCADE"`
}

type candleModel struct {
	ID               uint `gorm:"primaryKey"`
	CandleSetModelID uint `gorm:"index"`
	Time             time.Time
	Open             float64
	Close            float64
	Low              float64
	High             float64
	Volume           float64
}

// SQLStorage implements the core.CandleStorage interface using a SQL
// database via GORM. The dialector is supplied by the caller, so any
// GORM-supported backend works.
type SQLStorage struct {
	db *gorm.DB
}

// FromSQL creates a new SQL storage instance
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (core.CandleStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&candleSetModel{}, &candleModel{})
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{
		db: db,
	}, nil
}

// Save stores a candle set, replacing any previous window for the same
// ticker and interval
func (s *SQLStorage) Save(set core.CandleSet) error {
	model := candleSetModel{
		Ticker:   set.Ticker,
		Interval: set.Interval,
		From:     set.From,
		To:       set.To,
		StoredAt: set.StoredAt,
		Candles: lo.Map(set.Candles, func(c core.Candle, _ int) candleModel {
			return candleModel{
				Time:   c.Time,
				Open:   c.Open,
				Close:  c.Close,
				Low:    c.Low,
				High:   c.High,
				Volume: c.Volume,
			}
		}),
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing candleSetModel
		result := tx.Where("ticker = ? AND interval = ?", set.Ticker, set.Interval).First(&existing)
		if result.Error == nil {
			if err := tx.Where("candle_set_model_id = ?", existing.ID).Delete(&candleModel{}).Error; err != nil {
				return fmt.Errorf("failed to clear previous window: %w", err)
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("failed to clear previous window: %w", err)
			}
		} else if result.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to look up previous window: %w", result.Error)
		}

		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to store candle set: %w", err)
		}

		return nil
	})
}

// Get retrieves the stored candle set for a ticker and interval. A miss
// returns nil without an error.
func (s *SQLStorage) Get(ticker, interval string) (*core.CandleSet, error) {
	var model candleSetModel

	result := s.db.Preload("Candles", func(db *gorm.DB) *gorm.DB {
		return db.Order("time ASC")
	}).Where("ticker = ? AND interval = ?", ticker, interval).First(&model)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch candle set: %w", result.Error)
	}

	set := &core.CandleSet{
		Ticker:   model.Ticker,
		Interval: model.Interval,
		From:     model.From,
		To:       model.To,
		StoredAt: model.StoredAt,
		Candles: lo.Map(model.Candles, func(c candleModel, _ int) core.Candle {
			return core.Candle{
				Ticker:   model.Ticker,
				Time:     c.Time,
				Open:     c.Open,
				Close:    c.Close,
				Low:      c.Low,
				High:     c.High,
				Volume:   c.Volume,
				Complete: true,
			}
		}),
	}

	return set, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}

// WithTransaction executes the given function within a database transaction
func (s *SQLStorage) WithTransaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}
