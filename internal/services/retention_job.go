package services

import (
	"context"
	"time"

	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/timeframe"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// RetentionJob deletes raw samples older than a number of whole UTC days.
// Rollups are kept.
type RetentionJob struct {
	samples repository.SampleRepository
	rawDays int
	now     func() time.Time
	logger  *utils.Logger
}

// NewRetentionJob creates the retention job. rawDays <= 0 disables it.
func NewRetentionJob(samples repository.SampleRepository, rawDays int, logger *utils.Logger) *RetentionJob {
	return &RetentionJob{
		samples: samples,
		rawDays: rawDays,
		now:     time.Now,
		logger:  logger.Named("retention_job"),
	}
}

// Name implements scheduler.Task
func (j *RetentionJob) Name() string {
	return "retention"
}

// Run implements scheduler.Task
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.rawDays <= 0 {
		return nil
	}

	cutoff := timeframe.StartOfDay(j.now()).AddDate(0, 0, -j.rawDays)
	deleted, err := j.samples.DeleteRange(ctx, 0, cutoff.UnixMilli()-1)
	if err != nil {
		return err
	}

	j.logger.Info("Raw samples pruned", zap.Time("before", cutoff), zap.Int64("deleted", deleted))
	return nil
}
