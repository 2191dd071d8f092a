package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrader/src/database"
	"papertrader/src/model"
)

// TradeRepository handles the append-only trade log.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

func NewTradeRepositoryWithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{
		db: db,
	}
}

// UpsertTrade inserts the trade. OrderID carries a unique index, so a replay
// with the same order id is a no-op rather than a duplicate row.
func (r *TradeRepository) UpsertTrade(ctx context.Context, trade *model.Trade) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(trade).Error
}

// UpdateStatus sets the status of an existing trade by its order id.
func (r *TradeRepository) UpdateStatus(ctx context.Context, orderID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

// FindByOrderID returns the trade with the given idempotency key, or nil when
// no such trade exists.
func (r *TradeRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// ListRecent returns the most recent trades, newest first.
func (r *TradeRepository) ListRecent(ctx context.Context, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
