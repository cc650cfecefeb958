package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/voltwatch/backend/internal/aggregate"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/timeframe"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Reading is an incoming measurement. Power is derived from current and
// voltage when absent, CreatedAt defaults to the time of ingestion.
type Reading struct {
	Current     float64  `json:"current"`
	Voltage     float64  `json:"voltage"`
	Power       *float64 `json:"power,omitempty"`
	PowerFactor *float64 `json:"powerFactor,omitempty"`
	CreatedAt   *int64   `json:"createdAt,omitempty"`
}

// TelemetryService stores samples and serves aggregated series
type TelemetryService struct {
	samples repository.SampleRepository
	rollups repository.RollupRepository
	hooks   *SampleHooks
	now     func() time.Time
	logger  *utils.Logger
}

// NewTelemetryService creates a telemetry service
func NewTelemetryService(
	samples repository.SampleRepository,
	rollups repository.RollupRepository,
	hooks *SampleHooks,
	logger *utils.Logger,
) *TelemetryService {
	return &TelemetryService{
		samples: samples,
		rollups: rollups,
		hooks:   hooks,
		now:     time.Now,
		logger:  logger.Named("telemetry_service"),
	}
}

// Ingest stores a reading for deviceID and fires the post-commit hooks
func (s *TelemetryService) Ingest(ctx context.Context, deviceID uint, r Reading) (*models.Sample, error) {
	for name, v := range map[string]float64{"current": r.Current, "voltage": r.Voltage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s must be a finite number", utils.ErrValidation, name)
		}
	}

	sample := models.Sample{
		DeviceID: deviceID,
		Current:  r.Current,
		Voltage:  r.Voltage,
	}

	switch {
	case r.Power != nil:
		sample.Power = *r.Power
	case r.PowerFactor != nil:
		sample.Power = r.Current * r.Voltage * *r.PowerFactor
	default:
		sample.Power = r.Current * r.Voltage
	}

	if r.CreatedAt != nil && *r.CreatedAt > 0 {
		sample.CreatedAt = *r.CreatedAt
	} else {
		sample.CreatedAt = s.now().UnixMilli()
	}

	if err := s.samples.Insert(ctx, &sample); err != nil {
		s.logger.Error("Failed to store sample", zap.Uint("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	if s.hooks != nil {
		s.hooks.Fire(ctx, sample)
	}
	return &sample, nil
}

// GetAggregatedSeries returns the chronologically sorted buckets of a window.
// Daily series read the stored rollups for whole past days and aggregate raw
// samples for the days (and devices) that have no rollup yet.
func (s *TelemetryService) GetAggregatedSeries(ctx context.Context, deviceID *uint, w timeframe.Window, frame timeframe.Frame) ([]aggregate.Bucket, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: invalid window", utils.ErrValidation)
	}

	width := aggregate.SelectBucketWidth(frame, w)

	samples, err := s.samples.QueryRange(ctx, deviceID, w.StartMs(), w.EndMs())
	if err != nil {
		return nil, err
	}

	if width != aggregate.DayWidth {
		buckets := aggregate.Aggregate(samples, width)
		aggregate.Sort(buckets)
		return buckets, nil
	}

	records, err := s.historicRollups(ctx, deviceID, w)
	if err != nil {
		return nil, err
	}

	type deviceDay struct {
		device uint
		day    int64
	}
	covered := make(map[deviceDay]bool, len(records))
	for _, r := range records {
		covered[deviceDay{r.DeviceID, r.WindowStart}] = true
	}

	pending := make(map[deviceDay][]models.Sample)
	for _, sample := range samples {
		key := deviceDay{sample.DeviceID, timeframe.StartOfDay(time.UnixMilli(sample.CreatedAt)).UnixMilli()}
		if covered[key] {
			continue
		}
		pending[key] = append(pending[key], sample)
	}

	for key, group := range pending {
		if b, ok := aggregate.Summarize(group, key.day); ok {
			records = append(records, aggregate.ToRollup(key.device, b))
		}
	}

	return aggregate.FromRollups(records), nil
}

// historicRollups loads rollups of past days lying entirely inside w
func (s *TelemetryService) historicRollups(ctx context.Context, deviceID *uint, w timeframe.Window) ([]models.RollupRecord, error) {
	first := timeframe.StartOfDay(w.StartDate)
	if first.Before(w.StartDate) {
		first = first.AddDate(0, 0, 1)
	}

	today := timeframe.StartOfDay(s.now())
	last := timeframe.StartOfDay(w.EndDate)
	if !timeframe.EndOfDay(w.EndDate).Equal(w.EndDate) {
		last = last.AddDate(0, 0, -1)
	}
	if !last.Before(today) {
		last = today.AddDate(0, 0, -1)
	}

	if last.Before(first) {
		return nil, nil
	}
	return s.rollups.QueryRange(ctx, deviceID, first.UnixMilli(), last.UnixMilli())
}
