package services

import (
	"context"
	"sync"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// SampleHook runs after a sample was durably stored
type SampleHook func(ctx context.Context, sample models.Sample)

// SampleHooks runs post-commit hooks in the background. The caller does not
// wait for them, but Wait blocks until every fired hook returned.
type SampleHooks struct {
	logger *utils.Logger
	hooks  []SampleHook
	wg     sync.WaitGroup
}

// NewSampleHooks creates an empty hook set
func NewSampleHooks(logger *utils.Logger) *SampleHooks {
	return &SampleHooks{logger: logger.Named("sample_hooks")}
}

// Add registers a hook. Not safe to call concurrently with Fire.
func (h *SampleHooks) Add(hook SampleHook) {
	h.hooks = append(h.hooks, hook)
}

// Fire starts every hook for sample. Hooks outlive the request context.
func (h *SampleHooks) Fire(ctx context.Context, sample models.Sample) {
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range h.hooks {
		h.wg.Add(1)
		go func(hook SampleHook) {
			defer h.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("Sample hook panicked",
						zap.Uint("device_id", sample.DeviceID),
						zap.Any("panic", r),
					)
				}
			}()
			hook(hookCtx, sample)
		}(hook)
	}
}

// Wait blocks until all fired hooks finished
func (h *SampleHooks) Wait() {
	h.wg.Wait()
}
