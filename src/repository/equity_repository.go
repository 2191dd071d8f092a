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

// EquityRepository stores the equity curve, one snapshot per cycle.
type EquityRepository struct {
	db *gorm.DB
}

// NewEquityRepository creates a new repository instance using the main database.
func NewEquityRepository() *EquityRepository {
	logger.WithField("component", "EquityRepository").
		Info("Creating new EquityRepository with MainDB")

	return &EquityRepository{
		db: database.MainDB,
	}
}

func NewEquityRepositoryWithDB(db *gorm.DB) *EquityRepository {
	return &EquityRepository{
		db: db,
	}
}

// UpsertSnapshot inserts the snapshot, updating in place when a snapshot for
// the same timestamp already exists.
func (r *EquityRepository) UpsertSnapshot(ctx context.Context, snapshot *model.EquitySnapshot) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"equity", "cash"}),
	}).Create(snapshot).Error
}

// GetLatest returns the newest snapshot, or nil when the curve is empty.
func (r *EquityRepository) GetLatest(ctx context.Context) (*model.EquitySnapshot, error) {
	var snapshot model.EquitySnapshot
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// GetHistory returns the equity curve in ascending timestamp order.
func (r *EquityRepository) GetHistory(ctx context.Context, limit int) ([]model.EquitySnapshot, error) {
	if limit <= 0 {
		limit = 500
	}

	var snapshots []model.EquitySnapshot
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}
