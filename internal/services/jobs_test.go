package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/utils"
)

// brokenSampleRepo fails every range query
type brokenSampleRepo struct {
	repository.SampleRepository
}

func (r *brokenSampleRepo) QueryRange(ctx context.Context, deviceID *uint, startMs, endMs int64) ([]models.Sample, error) {
	return nil, fmt.Errorf("%w: connection reset", repository.ErrDatabase)
}

// flakyRollupRepo fails inserts for a single device
type flakyRollupRepo struct {
	repository.RollupRepository
	failDevice uint
}

func (r *flakyRollupRepo) Insert(ctx context.Context, record *models.RollupRecord) (bool, error) {
	if record.DeviceID == r.failDevice {
		return false, fmt.Errorf("%w: disk full", repository.ErrDatabase)
	}
	return r.RollupRepository.Insert(ctx, record)
}

func TestRollupJob_RunOnce(t *testing.T) {
	_, repos := setup(t)
	ctx := context.Background()

	d8, d9, d10 := day(2024, 3, 8), day(2024, 3, 9), day(2024, 3, 10)
	require.NoError(t, repos.Sample().InsertBatch(ctx, []models.Sample{
		{DeviceID: 1, Current: 2, Voltage: 220, Power: 440, CreatedAt: d9.UnixMilli()},
		{DeviceID: 1, Current: 4, Voltage: 230, Power: 920, CreatedAt: d10.UnixMilli() - 1},
		{DeviceID: 2, Current: 1, Voltage: 210, Power: 210, CreatedAt: d9.Add(12 * time.Hour).UnixMilli()},
		{DeviceID: 3, Current: 9, Voltage: 9, Power: 81, CreatedAt: d8.Add(12 * time.Hour).UnixMilli()},
		{DeviceID: 3, Current: 9, Voltage: 9, Power: 81, CreatedAt: d10.UnixMilli()},
	}))

	job := NewRollupJob(repos.Sample(), repos.Rollup(), utils.NewNopLogger())
	job.now = func() time.Time { return d10.Add(4 * time.Hour) }

	report, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RollupReport{WindowStart: d9.UnixMilli(), Written: 2}, report)

	records, err := repos.Rollup().QueryRange(ctx, nil, 0, math.MaxInt64)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, uint(1), records[0].DeviceID)
	assert.Equal(t, d9.UnixMilli(), records[0].WindowStart)
	assert.Equal(t, 2, records[0].SampleCount)
	assert.Equal(t, 3.0, records[0].AvgCurrent)
	assert.Equal(t, 225.0, records[0].AvgVoltage)
	assert.Equal(t, 680.0, records[0].AvgPower)

	assert.Equal(t, uint(2), records[1].DeviceID)
	assert.Equal(t, 1, records[1].SampleCount)

	// a second run over the same day changes nothing
	report, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RollupReport{WindowStart: d9.UnixMilli(), Skipped: 2}, report)

	records, err = repos.Rollup().QueryRange(ctx, nil, 0, math.MaxInt64)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRollupJob_Failures(t *testing.T) {
	d9, d10 := day(2024, 3, 9), day(2024, 3, 10)

	t.Run("Should keep writing other devices when one write fails", func(t *testing.T) {
		_, repos := setup(t)
		ctx := context.Background()

		require.NoError(t, repos.Sample().InsertBatch(ctx, []models.Sample{
			{DeviceID: 1, Current: 1, Voltage: 220, Power: 220, CreatedAt: d9.UnixMilli()},
			{DeviceID: 2, Current: 2, Voltage: 220, Power: 440, CreatedAt: d9.UnixMilli()},
			{DeviceID: 3, Current: 3, Voltage: 220, Power: 660, CreatedAt: d9.UnixMilli()},
		}))

		job := NewRollupJob(repos.Sample(), &flakyRollupRepo{RollupRepository: repos.Rollup(), failDevice: 2}, utils.NewNopLogger())
		job.now = func() time.Time { return d10.Add(time.Hour) }

		report, err := job.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, RollupReport{WindowStart: d9.UnixMilli(), Written: 2, Failed: 1}, report)

		records, err := repos.Rollup().QueryRange(ctx, nil, 0, math.MaxInt64)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, uint(1), records[0].DeviceID)
		assert.Equal(t, uint(3), records[1].DeviceID)
	})

	t.Run("Should end the run when samples cannot be fetched", func(t *testing.T) {
		_, repos := setup(t)
		ctx := context.Background()

		job := NewRollupJob(&brokenSampleRepo{SampleRepository: repos.Sample()}, repos.Rollup(), utils.NewNopLogger())
		job.now = func() time.Time { return d10.Add(time.Hour) }

		report, err := job.RunOnce(ctx)
		assert.ErrorIs(t, err, utils.ErrDependency)
		assert.Equal(t, RollupReport{WindowStart: d9.UnixMilli()}, report)
		assert.ErrorIs(t, job.Run(ctx), utils.ErrDependency)

		records, err := repos.Rollup().QueryRange(ctx, nil, 0, math.MaxInt64)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestRollupJob_EmptyDay(t *testing.T) {
	_, repos := setup(t)

	job := NewRollupJob(repos.Sample(), repos.Rollup(), utils.NewNopLogger())
	require.NoError(t, job.Run(context.Background()))

	records, err := repos.Rollup().QueryRange(context.Background(), nil, 0, math.MaxInt64)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "rollup", job.Name())
}

func TestRetentionJob_Run(t *testing.T) {
	_, repos := setup(t)
	ctx := context.Background()

	d8 := day(2024, 3, 8)
	require.NoError(t, repos.Sample().InsertBatch(ctx, []models.Sample{
		{DeviceID: 1, Current: 1, Voltage: 1, Power: 1, CreatedAt: d8.UnixMilli() - 1},
		{DeviceID: 1, Current: 1, Voltage: 1, Power: 1, CreatedAt: d8.UnixMilli()},
		{DeviceID: 1, Current: 1, Voltage: 1, Power: 1, CreatedAt: d8.AddDate(0, 0, 2).UnixMilli()},
	}))

	disabled := NewRetentionJob(repos.Sample(), 0, utils.NewNopLogger())
	require.NoError(t, disabled.Run(ctx))

	samples, err := repos.Sample().QueryRange(ctx, nil, 0, math.MaxInt64)
	require.NoError(t, err)
	assert.Len(t, samples, 3)

	job := NewRetentionJob(repos.Sample(), 2, utils.NewNopLogger())
	job.now = func() time.Time { return d8.AddDate(0, 0, 2).Add(12 * time.Hour) }
	require.NoError(t, job.Run(ctx))

	samples, err = repos.Sample().QueryRange(ctx, nil, 0, math.MaxInt64)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, d8.UnixMilli(), samples[0].CreatedAt)
}
