package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// DeviceLister lists every device with its schedule windows
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// DeviceGetter looks a device up by ID
type DeviceGetter interface {
	GetDevice(ctx context.Context, id uint) (*models.Device, error)
}

// RunningStateSetter records the last confirmed running state of a device
type RunningStateSetter interface {
	SetRunning(ctx context.Context, id uint, running bool) error
}

// DeviceDirectory is a read-through snapshot of all devices. A snapshot is
// served for at most ttl after it was loaded; every write through the
// directory drops it.
type DeviceDirectory struct {
	repo   repository.DeviceRepository
	ttl    time.Duration
	now    func() time.Time
	logger *utils.Logger

	mu       sync.RWMutex
	devices  []models.Device
	byID     map[uint]int
	loadedAt time.Time
	// generation is bumped by Invalidate. A load that started under an older
	// generation is returned to its caller but never installed.
	generation uint64
}

// NewDeviceDirectory creates a device directory. A ttl <= 0 disables caching.
func NewDeviceDirectory(repo repository.DeviceRepository, ttl time.Duration, logger *utils.Logger) *DeviceDirectory {
	return &DeviceDirectory{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Named("device_directory"),
	}
}

// Refresh reloads the snapshot from the repository
func (d *DeviceDirectory) Refresh(ctx context.Context) error {
	_, _, err := d.load(ctx)
	return err
}

func (d *DeviceDirectory) load(ctx context.Context) ([]models.Device, map[uint]int, error) {
	d.mu.RLock()
	generation := d.generation
	d.mu.RUnlock()

	devices, err := d.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[uint]int, len(devices))
	for i := range devices {
		byID[devices[i].ID] = i
	}

	d.mu.Lock()
	installed := d.generation == generation
	if installed {
		d.devices = devices
		d.byID = byID
		d.loadedAt = d.now()
	}
	d.mu.Unlock()

	if installed {
		d.logger.Debug("Device snapshot refreshed", zap.Int("devices", len(devices)))
	} else {
		d.logger.Debug("Device snapshot discarded after concurrent write", zap.Int("devices", len(devices)))
	}
	return devices, byID, nil
}

// Invalidate drops the snapshot so the next read hits the repository
func (d *DeviceDirectory) Invalidate() {
	d.mu.Lock()
	d.devices = nil
	d.byID = nil
	d.loadedAt = time.Time{}
	d.generation++
	d.mu.Unlock()
}

func (d *DeviceDirectory) fresh() bool {
	return d.byID != nil && d.ttl > 0 && d.now().Sub(d.loadedAt) < d.ttl
}

func (d *DeviceDirectory) snapshot(ctx context.Context) ([]models.Device, map[uint]int, error) {
	d.mu.RLock()
	if d.fresh() {
		devices, byID := d.devices, d.byID
		d.mu.RUnlock()
		return devices, byID, nil
	}
	d.mu.RUnlock()

	return d.load(ctx)
}

// ListDevices returns a copy of every device
func (d *DeviceDirectory) ListDevices(ctx context.Context) ([]models.Device, error) {
	devices, _, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Device, len(devices))
	copy(out, devices)
	return out, nil
}

// GetDevice returns a copy of the device. Devices created after the snapshot
// was taken are read from the repository.
func (d *DeviceDirectory) GetDevice(ctx context.Context, id uint) (*models.Device, error) {
	devices, byID, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if i, ok := byID[id]; ok {
		device := devices[i]
		return &device, nil
	}

	device, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Invalidate()
	return device, nil
}

// SetRunning persists the running flag and drops the snapshot
func (d *DeviceDirectory) SetRunning(ctx context.Context, id uint, running bool) error {
	defer d.Invalidate()
	return d.repo.SetRunning(ctx, id, running)
}

// Create stores a new device
func (d *DeviceDirectory) Create(ctx context.Context, device *models.Device) error {
	defer d.Invalidate()
	return d.repo.Create(ctx, device)
}

// Update saves a device and its schedule windows
func (d *DeviceDirectory) Update(ctx context.Context, device *models.Device) error {
	defer d.Invalidate()
	return d.repo.Update(ctx, device)
}

// Delete removes a device
func (d *DeviceDirectory) Delete(ctx context.Context, id uint) error {
	defer d.Invalidate()
	return d.repo.Delete(ctx, id)
}

// ListByUser reads the user's devices straight from the repository
func (d *DeviceDirectory) ListByUser(ctx context.Context, userID uint) ([]models.Device, error) {
	return d.repo.ListByUser(ctx, userID)
}

func isNotFound(err error) bool {
	return errors.Is(err, utils.ErrNotFound)
}
