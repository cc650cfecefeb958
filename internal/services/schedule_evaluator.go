package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const scheduleLayout = "2006-01-02 15:04"

// ScheduleReport summarises one evaluation tick
type ScheduleReport struct {
	Evaluated int `json:"evaluated"`
	Commands  int `json:"commands"`
	Failed    int `json:"failed"`
}

// ScheduleEvaluator switches devices on and off from their schedule windows.
// A command is only sent when the desired state differs from the last known
// one; the evaluator never writes the running state itself.
type ScheduleEvaluator struct {
	devices        DeviceLister
	sink           CommandSink
	loc            *time.Location
	maxConcurrency int
	now            func() time.Time
	logger         *utils.Logger
}

// NewScheduleEvaluator creates a schedule evaluator. Window dates and times
// are read in loc.
func NewScheduleEvaluator(devices DeviceLister, sink CommandSink, loc *time.Location, maxConcurrency int, logger *utils.Logger) *ScheduleEvaluator {
	if loc == nil {
		loc = time.UTC
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &ScheduleEvaluator{
		devices:        devices,
		sink:           sink,
		loc:            loc,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
		logger:         logger.Named("schedule_evaluator"),
	}
}

// Name implements scheduler.Task
func (e *ScheduleEvaluator) Name() string {
	return "schedules"
}

// Run implements scheduler.Task
func (e *ScheduleEvaluator) Run(ctx context.Context) error {
	_, err := e.Evaluate(ctx)
	return err
}

// WindowBounds returns the [start, end) instants of a schedule window
func WindowBounds(w models.ScheduleWindow, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(scheduleLayout, w.StartDate+" "+w.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: window start: %v", utils.ErrValidation, err)
	}
	end, err := time.ParseInLocation(scheduleLayout, w.EndDate+" "+w.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: window end: %v", utils.ErrValidation, err)
	}
	return start, end, nil
}

// DesiredRunning reports whether now lies in any of the windows. Any
// malformed window makes the whole schedule invalid.
func DesiredRunning(windows []models.ScheduleWindow, now time.Time, loc *time.Location) (bool, error) {
	running := false
	for _, w := range windows {
		start, end, err := WindowBounds(w, loc)
		if err != nil {
			return false, err
		}
		if !now.Before(start) && now.Before(end) {
			running = true
		}
	}
	return running, nil
}

// Evaluate runs one tick. Devices are evaluated concurrently and a failure
// for one device never stops the others.
func (e *ScheduleEvaluator) Evaluate(ctx context.Context) (ScheduleReport, error) {
	devices, err := e.devices.ListDevices(ctx)
	if err != nil {
		e.logger.Error("Failed to list devices", zap.Error(err))
		return ScheduleReport{}, err
	}

	now := e.now()
	var evaluated, commands, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)

	for i := range devices {
		device := devices[i]
		if len(device.ScheduledWindows) == 0 {
			continue
		}

		g.Go(func() error {
			evaluated.Add(1)

			desired, err := DesiredRunning(device.ScheduledWindows, now, e.loc)
			if err != nil {
				failed.Add(1)
				e.logger.Warn("Invalid schedule", zap.Uint("device_id", device.ID), zap.Error(err))
				return nil
			}

			if desired == device.IsRunning {
				return nil
			}

			cmd := StateCommand{Host: device.Host, DeviceID: device.ID, Running: desired}
			if err := e.sink.SendStateCommand(ctx, cmd); err != nil {
				failed.Add(1)
				e.logger.Warn("Scheduled state command failed, retrying next tick",
					zap.Uint("device_id", device.ID),
					zap.Bool("running", desired),
					zap.Error(err),
				)
				return nil
			}

			commands.Add(1)
			return nil
		})
	}

	// goroutines never return errors
	_ = g.Wait()

	report := ScheduleReport{
		Evaluated: int(evaluated.Load()),
		Commands:  int(commands.Load()),
		Failed:    int(failed.Load()),
	}
	if report.Commands > 0 || report.Failed > 0 {
		e.logger.Info("Schedules evaluated",
			zap.Int("evaluated", report.Evaluated),
			zap.Int("commands", report.Commands),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}
