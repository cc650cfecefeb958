package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltwatch/backend/internal/utils"
	"gorm.io/gorm"
)

// Common repository errors. They wrap the service level sentinels so callers
// can classify with errors.Is against either package.
var (
	ErrNotFound     = fmt.Errorf("record not found: %w", utils.ErrNotFound)
	ErrInvalidInput = fmt.Errorf("invalid input: %w", utils.ErrValidation)
	ErrConflict     = fmt.Errorf("record already exists: %w", utils.ErrAlreadyExists)
	ErrDatabase     = fmt.Errorf("database error: %w", utils.ErrDependency)
)

// Repository defines the basic repository interface with common CRUD operations
type Repository interface {
	// GetDB returns the underlying database connection
	GetDB() *gorm.DB
}

// BaseRepository provides common functionality for repositories
type BaseRepository struct {
	db *gorm.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *gorm.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the underlying database connection
func (r *BaseRepository) GetDB() *gorm.DB {
	return r.db
}

// withContext scopes the connection to ctx
func (r *BaseRepository) withContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// handleError converts GORM errors to repository errors
func (r *BaseRepository) handleError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}

	return fmt.Errorf("%w: %v", ErrDatabase, err)
}
