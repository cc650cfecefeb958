package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DeviceInput carries the operator editable fields of a device
type DeviceInput struct {
	Name             string                  `json:"name" binding:"required"`
	Description      string                  `json:"description"`
	Host             string                  `json:"host" binding:"required,url"`
	IsRunning        bool                    `json:"isRunning"`
	Alarm            models.AlarmConfig      `json:"alarmConfig"`
	ScheduledWindows []models.ScheduleWindow `json:"scheduledWindows" binding:"dive"`
}

// DeviceService handles device management. Creating or updating a device
// pushes the requested running state to it.
type DeviceService struct {
	directory *DeviceDirectory
	commands  CommandSink
	logger    *utils.Logger
}

// NewDeviceService creates a device service
func NewDeviceService(directory *DeviceDirectory, commands CommandSink, logger *utils.Logger) *DeviceService {
	return &DeviceService{
		directory: directory,
		commands:  commands,
		logger:    logger.Named("device_service"),
	}
}

func validateWindows(windows []models.ScheduleWindow) error {
	for i, w := range windows {
		start, end, err := WindowBounds(w, time.UTC)
		if err != nil {
			return fmt.Errorf("scheduled window %d: %w", i, err)
		}
		if !start.Before(end) {
			return fmt.Errorf("%w: scheduled window %d ends before it starts", utils.ErrValidation, i)
		}
	}
	return nil
}

// newDeviceKey returns a random ingestion key
func newDeviceKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Create stores a device owned by userID and returns it with its plain
// ingestion key. The key is not retrievable afterwards.
func (s *DeviceService) Create(ctx context.Context, userID uint, in DeviceInput) (*models.Device, string, error) {
	if err := validateWindows(in.ScheduledWindows); err != nil {
		return nil, "", err
	}

	key, err := newDeviceKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate device key: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash device key: %w", err)
	}

	device := &models.Device{
		UserID:           userID,
		Name:             in.Name,
		Description:      in.Description,
		Host:             in.Host,
		KeyHash:          string(hash),
		Alarm:            in.Alarm,
		ScheduledWindows: in.ScheduledWindows,
	}
	if err := s.directory.Create(ctx, device); err != nil {
		return nil, "", err
	}
	s.logger.Info("Device created", zap.Uint("device_id", device.ID), zap.String("name", device.Name))

	s.pushState(ctx, device, in.IsRunning)
	return device, key, nil
}

// Update replaces the editable fields of a device
func (s *DeviceService) Update(ctx context.Context, userID uint, id uint, in DeviceInput) (*models.Device, error) {
	if err := validateWindows(in.ScheduledWindows); err != nil {
		return nil, err
	}

	device, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	device.Name = in.Name
	device.Description = in.Description
	device.Host = in.Host
	device.Alarm = in.Alarm
	device.ScheduledWindows = in.ScheduledWindows

	if err := s.directory.Update(ctx, device); err != nil {
		return nil, err
	}
	s.logger.Info("Device updated", zap.Uint("device_id", device.ID))

	s.pushState(ctx, device, in.IsRunning)
	return device, nil
}

// pushState sends the requested state; failures are logged only and leave
// the stored running state unchanged
func (s *DeviceService) pushState(ctx context.Context, device *models.Device, running bool) {
	cmd := StateCommand{Host: device.Host, DeviceID: device.ID, Running: running}
	if err := s.commands.SendStateCommand(ctx, cmd); err != nil {
		s.logger.Warn("Device did not accept state", zap.Uint("device_id", device.ID), zap.Error(err))
		return
	}
	device.IsRunning = running
}

// SetState switches a device on or off and reports delivery failures
func (s *DeviceService) SetState(ctx context.Context, userID uint, id uint, running bool) (*models.Device, error) {
	device, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	cmd := StateCommand{Host: device.Host, DeviceID: device.ID, Running: running}
	if err := s.commands.SendStateCommand(ctx, cmd); err != nil {
		return nil, err
	}
	device.IsRunning = running
	return device, nil
}

// Get returns a device of userID. Admins pass userID 0 to skip ownership.
func (s *DeviceService) Get(ctx context.Context, userID uint, id uint) (*models.Device, error) {
	device, err := s.directory.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != 0 && device.UserID != userID {
		return nil, fmt.Errorf("%w: device %d", utils.ErrNotFound, id)
	}
	return device, nil
}

// List returns the devices of userID, or every device for userID 0
func (s *DeviceService) List(ctx context.Context, userID uint) ([]models.Device, error) {
	if userID == 0 {
		return s.directory.ListDevices(ctx)
	}
	return s.directory.ListByUser(ctx, userID)
}

// Delete removes a device of userID
func (s *DeviceService) Delete(ctx context.Context, userID uint, id uint) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.directory.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Device deleted", zap.Uint("device_id", id))
	return nil
}

// Authenticate checks a device ingestion key
func (s *DeviceService) Authenticate(ctx context.Context, id uint, key string) (*models.Device, error) {
	device, err := s.directory.GetDevice(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: unknown device", utils.ErrUnauthorized)
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(device.KeyHash), []byte(key)) != nil {
		return nil, fmt.Errorf("%w: invalid device key", utils.ErrUnauthorized)
	}
	return device, nil
}
