package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
)

type staticLister struct {
	devices []models.Device
	err     error
}

func (s staticLister) ListDevices(ctx context.Context) ([]models.Device, error) {
	return s.devices, s.err
}

func window(startDate, startTime, endDate, endTime string) models.ScheduleWindow {
	return models.ScheduleWindow{StartDate: startDate, StartTime: startTime, EndDate: endDate, EndTime: endTime}
}

func TestDesiredRunning(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		windows []models.ScheduleWindow
		want    bool
		wantErr bool
	}{
		{"inside", []models.ScheduleWindow{window("2024-03-10", "11:59", "2024-03-10", "12:01")}, true, false},
		{"start is inclusive", []models.ScheduleWindow{window("2024-03-10", "12:00", "2024-03-10", "13:00")}, true, false},
		{"end is exclusive", []models.ScheduleWindow{window("2024-03-10", "11:00", "2024-03-10", "12:00")}, false, false},
		{"outside", []models.ScheduleWindow{window("2024-03-09", "08:00", "2024-03-09", "18:00")}, false, false},
		{"any window", []models.ScheduleWindow{
			window("2024-03-09", "08:00", "2024-03-09", "18:00"),
			window("2024-03-10", "06:00", "2024-03-11", "06:00"),
		}, true, false},
		{"malformed time", []models.ScheduleWindow{window("2024-03-10", "25:00", "2024-03-10", "26:00")}, false, true},
		{"malformed window fails the whole schedule", []models.ScheduleWindow{
			window("2024-03-10", "11:00", "2024-03-10", "13:00"),
			window("10/03/2024", "11:00", "2024-03-10", "13:00"),
		}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DesiredRunning(tt.windows, now, time.UTC)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDesiredRunning_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC) // 12:30 local

	w := []models.ScheduleWindow{window("2024-03-10", "12:00", "2024-03-10", "13:00")}

	running, err := DesiredRunning(w, now, loc)
	require.NoError(t, err)
	assert.True(t, running)

	running, err = DesiredRunning(w, now, time.UTC)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestScheduleEvaluator_Evaluate(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	active := window("2024-03-10", "11:59", "2024-03-10", "12:01")
	past := window("2024-03-09", "11:59", "2024-03-09", "12:01")

	lister := staticLister{devices: []models.Device{
		{ID: 1, Host: "http://a", ScheduledWindows: []models.ScheduleWindow{active}},
		{ID: 2, Host: "http://b", IsRunning: true, ScheduledWindows: []models.ScheduleWindow{active}},
		{ID: 3, Host: "http://c", IsRunning: true, ScheduledWindows: []models.ScheduleWindow{past}},
		{ID: 4, Host: "http://d"},
		{ID: 5, Host: "http://e", ScheduledWindows: []models.ScheduleWindow{window("x", "y", "z", "w")}},
	}}
	sink := &fakeSink{}

	evaluator := NewScheduleEvaluator(lister, sink, time.UTC, 2, utils.NewNopLogger())
	evaluator.now = func() time.Time { return now }

	report, err := evaluator.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScheduleReport{Evaluated: 4, Commands: 2, Failed: 1}, report)
	assert.ElementsMatch(t, []StateCommand{
		{Host: "http://a", DeviceID: 1, Running: true},
		{Host: "http://c", DeviceID: 3, Running: false},
	}, sink.commands())
}

func TestScheduleEvaluator_DeliveryFailureIsCounted(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	lister := staticLister{devices: []models.Device{
		{ID: 1, ScheduledWindows: []models.ScheduleWindow{window("2024-03-10", "11:00", "2024-03-10", "13:00")}},
	}}
	sink := &fakeSink{err: errors.New("unreachable")}

	evaluator := NewScheduleEvaluator(lister, sink, time.UTC, 0, utils.NewNopLogger())
	evaluator.now = func() time.Time { return now }

	report, err := evaluator.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScheduleReport{Evaluated: 1, Commands: 0, Failed: 1}, report)
}

func TestScheduleEvaluator_ListError(t *testing.T) {
	evaluator := NewScheduleEvaluator(staticLister{err: utils.ErrDependency}, &fakeSink{}, nil, 1, utils.NewNopLogger())
	err := evaluator.Run(context.Background())
	assert.ErrorIs(t, err, utils.ErrDependency)
}

func TestScheduleEvaluator_StoredDevices(t *testing.T) {
	ts, repos := setup(t)
	now := time.Now().UTC()
	start := now.Add(-time.Minute)
	end := now.Add(2 * time.Minute)

	userID := ts.SeedUser("scheduler", models.RoleUser)
	device := ts.SeedDevice(userID, "heater", "http://heater.local", "key", models.AlarmConfig{},
		window(start.Format("2006-01-02"), start.Format("15:04"), end.Format("2006-01-02"), end.Format("15:04")))

	transport := &fakeTransport{}
	directory := NewDeviceDirectory(repos.Device(), time.Minute, ts.Logger)
	commander := NewDeviceCommander(transport, directory, time.Second, ts.Logger)
	evaluator := NewScheduleEvaluator(directory, commander, time.UTC, 4, ts.Logger)
	evaluator.now = func() time.Time { return now }

	report, err := evaluator.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Commands)
	require.Len(t, transport.calls(), 1)
	assert.Equal(t, sentState{host: "http://heater.local", deviceID: device.ID, running: true}, transport.calls()[0])

	stored, err := repos.Device().GetByID(context.Background(), device.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRunning)

	// the stored state now matches the schedule, nothing more to send
	report, err = evaluator.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Commands)
	assert.Len(t, transport.calls(), 1)
}

func TestDeviceCommander_FailedDeliveryKeepsState(t *testing.T) {
	ts, repos := setup(t)
	userID := ts.SeedUser("commander", models.RoleUser)
	device := ts.SeedDevice(userID, "pump", "http://pump.local", "key", models.AlarmConfig{})

	transport := &fakeTransport{err: errors.New("timeout")}
	commander := NewDeviceCommander(transport, repos.Device(), time.Second, ts.Logger)

	err := commander.SendStateCommand(context.Background(), StateCommand{Host: device.Host, DeviceID: device.ID, Running: true})
	require.Error(t, err)

	stored, err := repos.Device().GetByID(context.Background(), device.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRunning)
}
