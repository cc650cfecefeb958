package repository

import (
	"context"

	"github.com/voltwatch/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RollupRepository defines operations for daily rollup records
type RollupRepository interface {
	Repository
	// Insert stores the record unless one already exists for the same device
	// and day. created reports whether a row was written.
	Insert(ctx context.Context, record *models.RollupRecord) (created bool, err error)
	// QueryRange returns records whose windowStart lies in [startMs, endMs],
	// ordered by windowStart. A nil deviceID matches every device.
	QueryRange(ctx context.Context, deviceID *uint, startMs, endMs int64) ([]models.RollupRecord, error)
}

// rollupRepository implements RollupRepository
type rollupRepository struct {
	BaseRepository
}

// NewRollupRepository creates a new rollup repository
func NewRollupRepository(db *gorm.DB) RollupRepository {
	return &rollupRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert writes a rollup record, keyed by (device_id, window_start)
func (r *rollupRepository) Insert(ctx context.Context, record *models.RollupRecord) (bool, error) {
	result := r.withContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "window_start"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, r.handleError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// QueryRange retrieves rollups for a range of days
func (r *rollupRepository) QueryRange(ctx context.Context, deviceID *uint, startMs, endMs int64) ([]models.RollupRecord, error) {
	var records []models.RollupRecord

	query := r.withContext(ctx).Where("window_start >= ? AND window_start <= ?", startMs, endMs)
	if deviceID != nil {
		query = query.Where("device_id = ?", *deviceID)
	}

	if err := query.Order("window_start asc").Order("device_id asc").Find(&records).Error; err != nil {
		return nil, r.handleError(err)
	}

	return records, nil
}
