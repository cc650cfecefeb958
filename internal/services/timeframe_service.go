package services

import (
	"context"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/timeframe"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// TimeFrameService builds resolvers from the recognised frame list. The list
// stored under the timeFrames setting wins over the configured default.
type TimeFrameService struct {
	settings repository.SettingRepository
	defaults []string
	now      func() time.Time
	logger   *utils.Logger
}

// NewTimeFrameService creates a time frame service
func NewTimeFrameService(settings repository.SettingRepository, defaults []string, logger *utils.Logger) *TimeFrameService {
	return &TimeFrameService{
		settings: settings,
		defaults: defaults,
		now:      time.Now,
		logger:   logger.Named("timeframe_service"),
	}
}

// Frames returns the recognised frame names
func (s *TimeFrameService) Frames(ctx context.Context) ([]string, error) {
	var frames []string
	err := s.settings.Get(ctx, models.SettingTimeFrames, &frames)
	switch {
	case err == nil:
		return frames, nil
	case isNotFound(err):
		return s.defaults, nil
	default:
		return nil, err
	}
}

// SetFrames replaces the stored frame list after checking every name
func (s *TimeFrameService) SetFrames(ctx context.Context, frames []string) error {
	if _, err := timeframe.NewResolver(frames); err != nil {
		return err
	}
	if err := s.settings.Put(ctx, models.SettingTimeFrames, frames); err != nil {
		return err
	}
	s.logger.Info("Time frames updated", zap.Strings("frames", frames))
	return nil
}

// Resolver returns a resolver for the current frame list
func (s *TimeFrameService) Resolver(ctx context.Context) (*timeframe.Resolver, error) {
	frames, err := s.Frames(ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := timeframe.NewResolver(frames)
	if err != nil {
		return nil, err
	}
	return resolver.WithClock(s.now), nil
}

// Resolve resolves every recognised frame for req
func (s *TimeFrameService) Resolve(ctx context.Context, req timeframe.Request) (map[timeframe.Frame]timeframe.Window, error) {
	resolver, err := s.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(req)
}

// Window resolves only the requested frame
func (s *TimeFrameService) Window(ctx context.Context, req timeframe.Request) (timeframe.Window, error) {
	resolver, err := s.Resolver(ctx)
	if err != nil {
		return timeframe.Window{}, err
	}
	return resolver.Window(req)
}
