package services

import (
	"context"
	"time"

	"github.com/voltwatch/backend/internal/command"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// StateCommand asks a device to switch on or off
type StateCommand struct {
	Host     string
	DeviceID uint
	Running  bool
}

// CommandSink delivers state commands
type CommandSink interface {
	SendStateCommand(ctx context.Context, cmd StateCommand) error
}

// DeviceCommander sends state commands through a transport and records the
// new running state only once delivery succeeded
type DeviceCommander struct {
	transport command.Transport
	devices   RunningStateSetter
	timeout   time.Duration
	logger    *utils.Logger
}

// NewDeviceCommander creates a commander
func NewDeviceCommander(transport command.Transport, devices RunningStateSetter, timeout time.Duration, logger *utils.Logger) *DeviceCommander {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeviceCommander{
		transport: transport,
		devices:   devices,
		timeout:   timeout,
		logger:    logger.Named("device_commander"),
	}
}

// SendStateCommand delivers cmd within the configured timeout
func (c *DeviceCommander) SendStateCommand(ctx context.Context, cmd StateCommand) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.transport.SendState(sendCtx, cmd.Host, cmd.DeviceID, cmd.Running); err != nil {
		c.logger.Warn("State command not delivered",
			zap.Uint("device_id", cmd.DeviceID),
			zap.Bool("running", cmd.Running),
			zap.Error(err),
		)
		return err
	}

	if err := c.devices.SetRunning(ctx, cmd.DeviceID, cmd.Running); err != nil {
		c.logger.Error("State command delivered but running state not saved",
			zap.Uint("device_id", cmd.DeviceID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("Device state changed", zap.Uint("device_id", cmd.DeviceID), zap.Bool("running", cmd.Running))
	return nil
}
