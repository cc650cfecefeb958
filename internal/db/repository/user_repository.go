package repository

import (
	"context"

	"github.com/voltwatch/backend/internal/db/models"
	"gorm.io/gorm"
)

// UserRepository defines operations for managing users
type UserRepository interface {
	Repository
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// userRepository implements UserRepository
type userRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create adds a new user to the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	var count int64
	if err := r.withContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return r.handleError(err)
	}

	if count > 0 {
		return ErrConflict
	}

	return r.handleError(r.withContext(ctx).Create(user).Error)
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.withContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.withContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &user, nil
}
