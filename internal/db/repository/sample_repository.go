package repository

import (
	"context"

	"github.com/voltwatch/backend/internal/db/models"
	"gorm.io/gorm"
)

// SampleRepository defines operations for raw telemetry samples
type SampleRepository interface {
	Repository
	Insert(ctx context.Context, sample *models.Sample) error
	InsertBatch(ctx context.Context, samples []models.Sample) error
	// QueryRange returns samples with startMs <= createdAt <= endMs ordered by
	// createdAt ascending. A nil deviceID matches every device.
	QueryRange(ctx context.Context, deviceID *uint, startMs, endMs int64) ([]models.Sample, error)
	DeleteRange(ctx context.Context, startMs, endMs int64) (int64, error)
}

// sampleRepository implements SampleRepository
type sampleRepository struct {
	BaseRepository
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(db *gorm.DB) SampleRepository {
	return &sampleRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert stores a single sample
func (r *sampleRepository) Insert(ctx context.Context, sample *models.Sample) error {
	return r.handleError(r.withContext(ctx).Create(sample).Error)
}

// InsertBatch stores samples in one transaction
func (r *sampleRepository) InsertBatch(ctx context.Context, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx := r.withContext(ctx).Begin()
	if tx.Error != nil {
		return r.handleError(tx.Error)
	}

	if err := tx.CreateInBatches(samples, 100).Error; err != nil {
		tx.Rollback()
		return r.handleError(err)
	}

	return r.handleError(tx.Commit().Error)
}

// QueryRange retrieves samples inside an inclusive millisecond range
func (r *sampleRepository) QueryRange(ctx context.Context, deviceID *uint, startMs, endMs int64) ([]models.Sample, error) {
	var samples []models.Sample

	query := r.withContext(ctx).Where("created_at >= ? AND created_at <= ?", startMs, endMs)
	if deviceID != nil {
		query = query.Where("device_id = ?", *deviceID)
	}

	if err := query.Order("created_at asc").Order("id asc").Find(&samples).Error; err != nil {
		return nil, r.handleError(err)
	}

	return samples, nil
}

// DeleteRange removes samples inside an inclusive millisecond range
func (r *sampleRepository) DeleteRange(ctx context.Context, startMs, endMs int64) (int64, error) {
	result := r.withContext(ctx).
		Where("created_at >= ? AND created_at <= ?", startMs, endMs).
		Delete(&models.Sample{})
	if result.Error != nil {
		return 0, r.handleError(result.Error)
	}
	return result.RowsAffected, nil
}
