package services

import (
	"context"
	"sort"
	"time"

	"github.com/voltwatch/backend/internal/aggregate"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/timeframe"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// RollupReport summarises one rollup run
type RollupReport struct {
	WindowStart int64 `json:"windowStart"`
	Written     int   `json:"written"`
	Skipped     int   `json:"skipped"` // a rollup already existed
	Failed      int   `json:"failed"`
}

// RollupJob writes one daily summary per device for the previous UTC day
type RollupJob struct {
	samples repository.SampleRepository
	rollups repository.RollupRepository
	now     func() time.Time
	logger  *utils.Logger
}

// NewRollupJob creates the rollup job
func NewRollupJob(samples repository.SampleRepository, rollups repository.RollupRepository, logger *utils.Logger) *RollupJob {
	return &RollupJob{
		samples: samples,
		rollups: rollups,
		now:     time.Now,
		logger:  logger.Named("rollup_job"),
	}
}

// Name implements scheduler.Task
func (j *RollupJob) Name() string {
	return "rollup"
}

// Run implements scheduler.Task
func (j *RollupJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce rolls up the day before now. A fetch error ends the run; a failed
// write only skips that device.
func (j *RollupJob) RunOnce(ctx context.Context) (RollupReport, error) {
	today := timeframe.StartOfDay(j.now())
	windowStart := today.AddDate(0, 0, -1)
	windowEnd := today.Add(-time.Millisecond)

	report := RollupReport{WindowStart: windowStart.UnixMilli()}

	samples, err := j.samples.QueryRange(ctx, nil, windowStart.UnixMilli(), windowEnd.UnixMilli())
	if err != nil {
		j.logger.Error("Failed to fetch samples for rollup",
			zap.Time("window_start", windowStart),
			zap.Error(err),
		)
		return report, err
	}

	groups := make(map[uint][]models.Sample)
	for _, s := range samples {
		groups[s.DeviceID] = append(groups[s.DeviceID], s)
	}

	deviceIDs := make([]uint, 0, len(groups))
	for id := range groups {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Slice(deviceIDs, func(a, b int) bool { return deviceIDs[a] < deviceIDs[b] })

	for _, deviceID := range deviceIDs {
		bucket, ok := aggregate.Summarize(groups[deviceID], report.WindowStart)
		if !ok {
			continue
		}

		record := aggregate.ToRollup(deviceID, bucket)
		created, err := j.rollups.Insert(ctx, &record)
		switch {
		case err != nil:
			report.Failed++
			j.logger.Error("Failed to write rollup",
				zap.Uint("device_id", deviceID),
				zap.Time("window_start", windowStart),
				zap.Error(err),
			)
		case created:
			report.Written++
		default:
			report.Skipped++
		}
	}

	j.logger.Info("Rollup finished",
		zap.Time("window_start", windowStart),
		zap.Int("samples", len(samples)),
		zap.Int("written", report.Written),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
