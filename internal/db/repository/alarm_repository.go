package repository

import (
	"context"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"gorm.io/gorm"
)

// AlarmRepository defines operations on a user's alarm list
type AlarmRepository interface {
	Repository
	Append(ctx context.Context, userID uint, alarm *models.UserAlarm) error
	// List returns the user's alarms, newest first
	List(ctx context.Context, userID uint) ([]models.UserAlarm, error)
	// Page returns one page of List together with the total count
	Page(ctx context.Context, userID uint, page utils.PaginationRequest) ([]models.UserAlarm, int64, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

// alarmRepository implements AlarmRepository
type alarmRepository struct {
	BaseRepository
}

// NewAlarmRepository creates a new alarm repository
func NewAlarmRepository(db *gorm.DB) AlarmRepository {
	return &alarmRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Append adds an alarm to the user's list
func (r *alarmRepository) Append(ctx context.Context, userID uint, alarm *models.UserAlarm) error {
	alarm.UserID = userID
	return r.handleError(r.withContext(ctx).Create(alarm).Error)
}

// List retrieves the user's alarms sorted by createdAt descending
func (r *alarmRepository) List(ctx context.Context, userID uint) ([]models.UserAlarm, error) {
	var alarms []models.UserAlarm
	err := r.withContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&alarms).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return alarms, nil
}

// Page retrieves one page of the user's alarms, newest first
func (r *alarmRepository) Page(ctx context.Context, userID uint, page utils.PaginationRequest) ([]models.UserAlarm, int64, error) {
	owned := func() *gorm.DB {
		return r.withContext(ctx).Model(&models.UserAlarm{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := owned().Count(&total).Error; err != nil {
		return nil, 0, r.handleError(err)
	}

	var alarms []models.UserAlarm
	err := utils.ApplyPagination(owned().Order("created_at desc").Order("id desc"), page).
		Find(&alarms).Error
	if err != nil {
		return nil, 0, r.handleError(err)
	}
	return alarms, total, nil
}

// MarkAllRead flags every unread alarm of the user as read
func (r *alarmRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := r.withContext(ctx).Model(&models.UserAlarm{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, r.handleError(result.Error)
	}
	return result.RowsAffected, nil
}
