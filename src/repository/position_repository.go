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

// PositionRepository stores one row per open symbol.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{
		db: database.MainDB,
	}
}

func NewPositionRepositoryWithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{
		db: db,
	}
}

// UpsertPosition creates or replaces the position row for its symbol.
func (r *PositionRepository) UpsertPosition(ctx context.Context, position *model.Position) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "average_entry_price", "current_price", "unrealized_pnl", "updated_at",
		}),
	}).Create(position).Error
}

// GetOpenPositions returns every open position, ordered by symbol.
func (r *PositionRepository) GetOpenPositions(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// FindBySymbol returns the open position for a symbol, or nil when flat.
func (r *PositionRepository) FindBySymbol(ctx context.Context, symbol string) (*model.Position, error) {
	var position model.Position
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// DeleteBySymbol removes the position row once the holding is fully closed.
func (r *PositionRepository) DeleteBySymbol(ctx context.Context, symbol string) error {
	return r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Delete(&model.Position{}).Error
}
