// Package store keeps daily closes in Postgres so repeated backtests do not
// refetch them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DailyClose is one cached close.
type DailyClose struct {
	ID        uint            `gorm:"primaryKey"`
	Ticker    string          `gorm:"uniqueIndex:idx_daily_close_ticker_date;not null"`
	Date      time.Time       `gorm:"uniqueIndex:idx_daily_close_ticker_date;type:date;not null"`
	Close     decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	UpdatedAt time.Time
}

func (DailyClose) TableName() string { return "daily_closes" }

// Store is a market.Store backed by gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty price cache dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("open price cache: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&DailyClose{}); err != nil {
		return nil, fmt.Errorf("migrate price cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the cached closes of ticker within [start, end], oldest first.
func (s *Store) Load(ctx context.Context, ticker string, start, end time.Time) ([]market.Bar, error) {
	var rows []DailyClose
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date BETWEEN ? AND ?", ticker, market.Day(start), market.Day(end)).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ticker, err)
	}

	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = market.Bar{Ticker: r.Ticker, Date: market.Day(r.Date), Close: r.Close}
	}
	return bars, nil
}

// Save upserts bars, replacing the close of any (ticker, date) already cached.
func (s *Store) Save(ctx context.Context, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	rows := make([]DailyClose, len(bars))
	for i, b := range bars {
		rows[i] = DailyClose{Ticker: b.Ticker, Date: market.Day(b.Date), Close: b.Close}
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"close", "updated_at"}),
		}).
		CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("save %d bars: %w", len(bars), err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
