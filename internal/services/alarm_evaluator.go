package services

import (
	"context"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// EventAlarm is the notification event carrying a new UserAlarm
const EventAlarm = "alarm"

// AlarmEvaluator checks each stored sample against the thresholds of its
// device and records an alarm for every breach. Consecutive breaching
// samples each produce their own alarm.
type AlarmEvaluator struct {
	devices  DeviceGetter
	users    repository.UserRepository
	alarms   repository.AlarmRepository
	notifier Notifier
	now      func() time.Time
	logger   *utils.Logger
}

// NewAlarmEvaluator creates an alarm evaluator
func NewAlarmEvaluator(
	devices DeviceGetter,
	users repository.UserRepository,
	alarms repository.AlarmRepository,
	notifier Notifier,
	logger *utils.Logger,
) *AlarmEvaluator {
	return &AlarmEvaluator{
		devices:  devices,
		users:    users,
		alarms:   alarms,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.Named("alarm_evaluator"),
	}
}

// Breaches returns the alarms a sample raises against cfg, without owner or
// timestamp. A value equal to its threshold does not breach.
func Breaches(cfg models.AlarmConfig, deviceName string, sample models.Sample) []models.UserAlarm {
	checks := []struct {
		enabled   bool
		threshold float64
		value     float64
		kind      models.AlarmType
	}{
		{cfg.CurrentEnabled, cfg.CurrentThreshold, sample.Current, models.AlarmTypeCurrent},
		{cfg.VoltageEnabled, cfg.VoltageThreshold, sample.Voltage, models.AlarmTypeVoltage},
		{cfg.PowerEnabled, cfg.PowerThreshold, sample.Power, models.AlarmTypePower},
	}

	var out []models.UserAlarm
	for _, c := range checks {
		if c.enabled && c.value > c.threshold {
			out = append(out, models.UserAlarm{
				Device:    deviceName,
				Type:      c.kind,
				Threshold: c.threshold,
				Value:     c.value,
			})
		}
	}
	return out
}

// Evaluate records and publishes the alarms raised by sample. An unknown
// device or owner is logged and yields no alarms.
func (e *AlarmEvaluator) Evaluate(ctx context.Context, sample models.Sample) ([]models.UserAlarm, error) {
	device, err := e.devices.GetDevice(ctx, sample.DeviceID)
	if err != nil {
		if isNotFound(err) {
			e.logger.Warn("Sample for unknown device, skipping alarms", zap.Uint("device_id", sample.DeviceID))
			return nil, nil
		}
		return nil, err
	}

	user, err := e.users.GetByID(ctx, device.UserID)
	if err != nil {
		if isNotFound(err) {
			e.logger.Warn("Device has no owner, skipping alarms",
				zap.Uint("device_id", device.ID),
				zap.Uint("user_id", device.UserID),
			)
			return nil, nil
		}
		return nil, err
	}

	breaches := Breaches(device.Alarm, device.Name, sample)
	if len(breaches) == 0 {
		return nil, nil
	}

	createdAt := e.now().UnixMilli()
	emitted := make([]models.UserAlarm, 0, len(breaches))
	for _, alarm := range breaches {
		alarm.CreatedAt = createdAt
		if err := e.alarms.Append(ctx, user.ID, &alarm); err != nil {
			e.logger.Error("Failed to store alarm",
				zap.Uint("user_id", user.ID),
				zap.String("device", alarm.Device),
				zap.String("type", string(alarm.Type)),
				zap.Error(err),
			)
			continue
		}

		if e.notifier != nil {
			e.notifier.Send(user.ID, EventAlarm, alarm)
		}
		emitted = append(emitted, alarm)
	}

	e.logger.Debug("Alarms raised", zap.Uint("device_id", device.ID), zap.Int("count", len(emitted)))
	return emitted, nil
}

// Hook adapts the evaluator to a post-commit sample hook
func (e *AlarmEvaluator) Hook() SampleHook {
	return func(ctx context.Context, sample models.Sample) {
		if _, err := e.Evaluate(ctx, sample); err != nil {
			e.logger.Error("Alarm evaluation failed", zap.Uint("device_id", sample.DeviceID), zap.Error(err))
		}
	}
}
