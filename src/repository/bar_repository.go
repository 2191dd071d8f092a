package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrader/src/database"
	"papertrader/src/model"
)

// BarRepository archives fetched OHLCV bars so backtests can replay them
// without hitting the providers again.
type BarRepository struct {
	db *gorm.DB
}

// NewBarRepository creates a new repository instance using the main database.
func NewBarRepository() *BarRepository {
	logger.WithField("component", "BarRepository").
		Info("Creating new BarRepository with MainDB")

	return &BarRepository{
		db: database.MainDB,
	}
}

func NewBarRepositoryWithDB(db *gorm.DB) *BarRepository {
	return &BarRepository{
		db: db,
	}
}

// UpsertBars writes the series through. On conflict on (symbol, timestamp)
// the row is updated, so re-fetching a window is idempotent.
func (r *BarRepository) UpsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(&bars).Error
}

// FetchRecent returns up to limit bars ending at to, in ascending
// chronological order.
func (r *BarRepository) FetchRecent(ctx context.Context, symbol string, to time.Time, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.Bar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timestamp <= ?", symbol, to).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
