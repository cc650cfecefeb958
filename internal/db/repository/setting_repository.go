package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voltwatch/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository stores runtime-editable settings as JSON values
type SettingRepository interface {
	Repository
	// Get decodes the value stored under key into out
	Get(ctx context.Context, key string, out interface{}) error
	Put(ctx context.Context, key string, value interface{}) error
}

// settingRepository implements SettingRepository
type settingRepository struct {
	BaseRepository
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get loads and decodes a setting
func (r *settingRepository) Get(ctx context.Context, key string, out interface{}) error {
	var setting models.Setting
	if err := r.withContext(ctx).Where("setting_key = ?", key).First(&setting).Error; err != nil {
		return r.handleError(err)
	}

	if err := json.Unmarshal(setting.Value, out); err != nil {
		return fmt.Errorf("%w: setting %s: %v", ErrInvalidInput, key, err)
	}
	return nil
}

// Put encodes and upserts a setting
func (r *settingRepository) Put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: setting %s: %v", ErrInvalidInput, key, err)
	}

	setting := models.Setting{Key: key, Value: models.JSON(raw)}
	err = r.withContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	return r.handleError(err)
}
