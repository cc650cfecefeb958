package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
)

// flakyAlarmRepo fails to store alarms of one type
type flakyAlarmRepo struct {
	repository.AlarmRepository
	failType models.AlarmType
}

func (r *flakyAlarmRepo) Append(ctx context.Context, userID uint, alarm *models.UserAlarm) error {
	if alarm.Type == r.failType {
		return fmt.Errorf("%w: disk full", repository.ErrDatabase)
	}
	return r.AlarmRepository.Append(ctx, userID, alarm)
}

func TestBreaches(t *testing.T) {
	cfg := models.AlarmConfig{
		CurrentEnabled:   true,
		CurrentThreshold: 5,
		VoltageEnabled:   false,
		VoltageThreshold: 100,
		PowerEnabled:     true,
		PowerThreshold:   1000,
	}

	t.Run("equal to threshold does not breach", func(t *testing.T) {
		assert.Empty(t, Breaches(cfg, "oven", models.Sample{Current: 5, Voltage: 230, Power: 1000}))
	})

	t.Run("just above threshold breaches", func(t *testing.T) {
		alarms := Breaches(cfg, "oven", models.Sample{Current: 5.01, Voltage: 230, Power: 10})
		require.Len(t, alarms, 1)
		assert.Equal(t, models.UserAlarm{Device: "oven", Type: models.AlarmTypeCurrent, Threshold: 5, Value: 5.01}, alarms[0])
	})

	t.Run("disabled metrics are ignored", func(t *testing.T) {
		alarms := Breaches(cfg, "oven", models.Sample{Current: 6, Voltage: 230, Power: 1380})
		require.Len(t, alarms, 2)
		assert.Equal(t, models.AlarmTypeCurrent, alarms[0].Type)
		assert.Equal(t, models.AlarmTypePower, alarms[1].Type)
	})
}

func TestAlarmEvaluator_IngestRaisesAlarm(t *testing.T) {
	ts, repos := setup(t)
	ctx := context.Background()

	userID := ts.SeedUser("owner", models.RoleUser)
	device := ts.SeedDevice(userID, "kettle", "http://kettle.local", "key", models.AlarmConfig{
		CurrentEnabled:   true,
		CurrentThreshold: 5,
	})

	notifier := &fakeNotifier{}
	directory := NewDeviceDirectory(repos.Device(), time.Minute, ts.Logger)
	evaluator := NewAlarmEvaluator(directory, repos.User(), repos.Alarm(), notifier, ts.Logger)
	evaluator.now = func() time.Time { return time.UnixMilli(1700000000000) }

	hooks := NewSampleHooks(ts.Logger)
	hooks.Add(evaluator.Hook())
	telemetry := NewTelemetryService(repos.Sample(), repos.Rollup(), hooks, ts.Logger)

	_, err := telemetry.Ingest(ctx, device.ID, Reading{Current: 5, Voltage: 220})
	require.NoError(t, err)
	_, err = telemetry.Ingest(ctx, device.ID, Reading{Current: 6, Voltage: 220})
	require.NoError(t, err)
	hooks.Wait()

	alarms, err := repos.Alarm().List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, "kettle", alarms[0].Device)
	assert.Equal(t, models.AlarmTypeCurrent, alarms[0].Type)
	assert.Equal(t, 5.0, alarms[0].Threshold)
	assert.Equal(t, 6.0, alarms[0].Value)
	assert.False(t, alarms[0].Read)
	assert.Equal(t, int64(1700000000000), alarms[0].CreatedAt)

	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, userID, sent[0].userID)
	assert.Equal(t, EventAlarm, sent[0].event)
}

func TestAlarmEvaluator_RepeatedBreachesAreNotMerged(t *testing.T) {
	ts, repos := setup(t)
	ctx := context.Background()

	userID := ts.SeedUser("owner", models.RoleUser)
	device := ts.SeedDevice(userID, "heater", "http://heater.local", "key", models.AlarmConfig{
		VoltageEnabled:   true,
		VoltageThreshold: 230,
	})

	evaluator := NewAlarmEvaluator(NewDeviceDirectory(repos.Device(), time.Minute, ts.Logger), repos.User(), repos.Alarm(), nil, ts.Logger)

	for i := 0; i < 3; i++ {
		emitted, err := evaluator.Evaluate(ctx, models.Sample{DeviceID: device.ID, Voltage: 240})
		require.NoError(t, err)
		assert.Len(t, emitted, 1)
	}

	alarms, err := repos.Alarm().List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, alarms, 3)
}

func TestAlarmEvaluator_UnknownDeviceOrOwner(t *testing.T) {
	ts, repos := setup(t)
	ctx := context.Background()
	notifier := &fakeNotifier{}

	evaluator := NewAlarmEvaluator(NewDeviceDirectory(repos.Device(), time.Minute, ts.Logger), repos.User(), repos.Alarm(), notifier, ts.Logger)

	emitted, err := evaluator.Evaluate(ctx, models.Sample{DeviceID: 999, Current: 100})
	require.NoError(t, err)
	assert.Empty(t, emitted)

	orphan := ts.SeedDevice(4242, "orphan", "http://orphan.local", "key", models.AlarmConfig{
		CurrentEnabled:   true,
		CurrentThreshold: 1,
	})
	emitted, err = evaluator.Evaluate(ctx, models.Sample{DeviceID: orphan.ID, Current: 100})
	require.NoError(t, err)
	assert.Empty(t, emitted)
	assert.Empty(t, notifier.notifications())
}

func TestAlarmEvaluator_StoreFailure(t *testing.T) {
	ts, repos := setup(t)
	ctx := context.Background()

	userID := ts.SeedUser("owner", models.RoleUser)
	device := ts.SeedDevice(userID, "heater", "http://heater.local", "key", models.AlarmConfig{
		CurrentEnabled:   true,
		CurrentThreshold: 5,
		VoltageEnabled:   true,
		VoltageThreshold: 230,
		PowerEnabled:     true,
		PowerThreshold:   1000,
	})

	notifier := &fakeNotifier{}
	alarms := &flakyAlarmRepo{AlarmRepository: repos.Alarm(), failType: models.AlarmTypeVoltage}
	directory := NewDeviceDirectory(repos.Device(), time.Minute, ts.Logger)
	evaluator := NewAlarmEvaluator(directory, repos.User(), alarms, notifier, ts.Logger)

	t.Run("Should drop only the alarm that could not be stored", func(t *testing.T) {
		emitted, err := evaluator.Evaluate(ctx, models.Sample{DeviceID: device.ID, Current: 6, Voltage: 240, Power: 1440})
		require.NoError(t, err)
		require.Len(t, emitted, 2)
		assert.Equal(t, models.AlarmTypeCurrent, emitted[0].Type)
		assert.Equal(t, models.AlarmTypePower, emitted[1].Type)

		stored, err := repos.Alarm().List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		for _, alarm := range stored {
			assert.NotEqual(t, models.AlarmTypeVoltage, alarm.Type)
		}

		sent := notifier.notifications()
		require.Len(t, sent, 2)
		for _, n := range sent {
			assert.Equal(t, userID, n.userID)
			assert.Equal(t, EventAlarm, n.event)
			assert.NotEqual(t, models.AlarmTypeVoltage, n.payload.(models.UserAlarm).Type)
		}
	})
}
