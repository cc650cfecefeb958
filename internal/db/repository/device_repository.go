package repository

import (
	"context"

	"github.com/voltwatch/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository defines operations for managing devices and their schedules
type DeviceRepository interface {
	Repository
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id uint) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	Delete(ctx context.Context, id uint) error
	SetRunning(ctx context.Context, id uint, running bool) error
}

// deviceRepository implements DeviceRepository
type deviceRepository struct {
	BaseRepository
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create adds a new device together with its schedule windows
func (r *deviceRepository) Create(ctx context.Context, device *models.Device) error {
	var count int64
	if err := r.withContext(ctx).Model(&models.Device{}).Where("name = ?", device.Name).Count(&count).Error; err != nil {
		return r.handleError(err)
	}

	if count > 0 {
		return ErrConflict
	}

	return r.handleError(r.withContext(ctx).Create(device).Error)
}

// GetByID retrieves a device with its schedule windows
func (r *deviceRepository) GetByID(ctx context.Context, id uint) (*models.Device, error) {
	var device models.Device
	err := r.withContext(ctx).Preload("ScheduledWindows").Where("id = ?", id).First(&device).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &device, nil
}

// List retrieves every device with its schedule windows
func (r *deviceRepository) List(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := r.withContext(ctx).Preload("ScheduledWindows").Order("id asc").Find(&devices).Error; err != nil {
		return nil, r.handleError(err)
	}
	return devices, nil
}

// ListByUser retrieves the devices owned by a user
func (r *deviceRepository) ListByUser(ctx context.Context, userID uint) ([]models.Device, error) {
	var devices []models.Device
	err := r.withContext(ctx).Preload("ScheduledWindows").
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&devices).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return devices, nil
}

// Update saves the device and replaces its schedule windows
func (r *deviceRepository) Update(ctx context.Context, device *models.Device) error {
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Device{}).Where("id = ?", device.ID).
			Omit(clause.Associations, "CreatedAt").
			Select("*").
			Updates(device)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("device_id = ?", device.ID).Delete(&models.ScheduleWindow{}).Error; err != nil {
			return err
		}

		for i := range device.ScheduledWindows {
			device.ScheduledWindows[i].ID = 0
			device.ScheduledWindows[i].DeviceID = device.ID
		}
		if len(device.ScheduledWindows) > 0 {
			if err := tx.Create(&device.ScheduledWindows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return r.handleError(err)
}

// Delete removes a device and its schedule windows
func (r *deviceRepository) Delete(ctx context.Context, id uint) error {
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&models.ScheduleWindow{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Device{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return r.handleError(err)
}

// SetRunning records the last confirmed running state of a device
func (r *deviceRepository) SetRunning(ctx context.Context, id uint, running bool) error {
	result := r.withContext(ctx).Model(&models.Device{}).Where("id = ?", id).Update("is_running", running)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
