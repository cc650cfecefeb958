package services

import (
	"context"
	"fmt"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// UserService handles user-related business logic
type UserService struct {
	users  repository.UserRepository
	alarms repository.AlarmRepository
	logger *utils.Logger
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository, alarms repository.AlarmRepository, logger *utils.Logger) *UserService {
	return &UserService{
		users:  users,
		alarms: alarms,
		logger: logger.Named("user_service"),
	}
}

// Authenticate verifies user credentials and returns the user
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
		}
		s.logger.Error("Database error during authentication", zap.Error(err))
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
	}

	return user, nil
}

// Register adds a new user with the plain password hashed on create
func (s *UserService) Register(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	user := &models.User{
		Username: username,
		Password: password,
		Role:     role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Alarms returns the user's alarms, newest first
func (s *UserService) Alarms(ctx context.Context, userID uint) ([]models.UserAlarm, error) {
	return s.alarms.List(ctx, userID)
}

// AlarmPage returns one page of the user's alarms and the total count
func (s *UserService) AlarmPage(ctx context.Context, userID uint, page utils.PaginationRequest) ([]models.UserAlarm, int64, error) {
	return s.alarms.Page(ctx, userID, page)
}

// MarkAlarmsRead flags every alarm of the user as read
func (s *UserService) MarkAlarmsRead(ctx context.Context, userID uint) (int64, error) {
	updated, err := s.alarms.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Alarms marked read", zap.Uint("user_id", userID), zap.Int64("updated", updated))
	return updated, nil
}

// EnsureAdmin creates an admin account unless the username is already taken.
// An existing user keeps its role and password.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	if _, err := s.Register(ctx, username, password, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create admin %q: %w", username, err)
	}
	s.logger.Info("Admin account created", zap.String("username", username))
	return nil
}
