package services

import (
	"context"
	"fmt"
	"time"

	"github.com/voltwatch/backend/internal/command"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/db"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/kafka"
	"github.com/voltwatch/backend/internal/scheduler"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// ServiceProvider manages all services for the application
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database

	transport           command.Transport
	kafkaManager        *kafka.Manager
	kafkaHandler        *KafkaHandler
	scheduler           *scheduler.Scheduler
	hooks               *SampleHooks
	directory           *DeviceDirectory
	notificationService *NotificationService
	telemetryService    *TelemetryService
	timeFrameService    *TimeFrameService
	deviceService       *DeviceService
	userService         *UserService
	rollupJob           *RollupJob
	retentionJob        *RetentionJob
	scheduleEvaluator   *ScheduleEvaluator
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(
	logger *utils.Logger,
	config *config.Config,
	database *db.Database,
) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   config,
		database: database,
	}
}

// Initialize builds and wires all services. Nothing runs in the background
// until Start is called.
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	var err error

	repoFactory := repository.NewRepositoryFactory(sp.database.DB)

	sp.transport, err = command.NewTransport(&sp.config.Command, sp.logger)
	if err != nil {
		return fmt.Errorf("failed to create command transport: %w", err)
	}

	sp.directory = NewDeviceDirectory(repoFactory.Device(), sp.config.Devices.CacheTTL, sp.logger)
	commander := NewDeviceCommander(sp.transport, sp.directory, sp.config.Command.Timeout, sp.logger)

	sp.notificationService = NewNotificationService(sp.logger)
	notifier := MultiNotifier{sp.notificationService}

	if sp.config.Kafka.Enabled {
		sp.kafkaManager, err = kafka.NewManager(&sp.config.Kafka, sp.logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka manager: %w", err)
		}
		notifier = append(notifier, sp.kafkaManager.Notifier())
	}

	sp.hooks = NewSampleHooks(sp.logger)
	alarms := NewAlarmEvaluator(sp.directory, repoFactory.User(), repoFactory.Alarm(), notifier, sp.logger)
	sp.hooks.Add(alarms.Hook())

	sp.telemetryService = NewTelemetryService(repoFactory.Sample(), repoFactory.Rollup(), sp.hooks, sp.logger)
	sp.timeFrameService = NewTimeFrameService(repoFactory.Setting(), sp.config.TimeFrames.Frames, sp.logger)
	sp.deviceService = NewDeviceService(sp.directory, commander, sp.logger)
	sp.userService = NewUserService(repoFactory.User(), repoFactory.Alarm(), sp.logger)

	loc := sp.config.Jobs.ScheduleLocation()
	sp.rollupJob = NewRollupJob(repoFactory.Sample(), repoFactory.Rollup(), sp.logger)
	sp.retentionJob = NewRetentionJob(repoFactory.Sample(), sp.config.Retention.RawDays, sp.logger)
	sp.scheduleEvaluator = NewScheduleEvaluator(sp.directory, commander, loc, sp.config.Jobs.MaxConcurrency, sp.logger)

	// Cron specs fire in UTC; loc only applies to schedule window wall-clock times.
	sp.scheduler = scheduler.New(sp.logger, time.UTC)
	tasks := []struct {
		spec string
		task scheduler.Task
	}{
		{sp.config.Jobs.RollupSpec, sp.rollupJob},
		{sp.config.Jobs.ScheduleSpec, sp.scheduleEvaluator},
		{sp.config.Jobs.RetentionSpec, sp.retentionJob},
	}
	for _, t := range tasks {
		if t.spec == "" {
			sp.logger.Info("Task disabled", zap.String("task", t.task.Name()))
			continue
		}
		if err := sp.scheduler.Register(t.spec, t.task); err != nil {
			return fmt.Errorf("failed to register task %s: %w", t.task.Name(), err)
		}
	}

	if sp.kafkaManager != nil {
		sp.kafkaHandler = NewKafkaHandler(sp.deviceService, sp.telemetryService, sp.logger)
		if err := sp.kafkaHandler.Initialize(sp.kafkaManager); err != nil {
			return fmt.Errorf("failed to initialize Kafka handler: %w", err)
		}
	}

	if err := sp.directory.Refresh(ctx); err != nil {
		sp.logger.Warn("Initial device directory load failed", zap.Error(err))
	}

	sp.logger.Info("All services initialized successfully")
	return nil
}

// Start launches the scheduler and the Kafka consumers
func (sp *ServiceProvider) Start() error {
	sp.scheduler.Start()

	if sp.kafkaManager != nil {
		if err := sp.kafkaManager.Start(); err != nil {
			return fmt.Errorf("failed to start Kafka manager: %w", err)
		}
		sp.logger.Info("Kafka manager started")
	}
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown(ctx context.Context) error {
	sp.logger.Info("Shutting down services")

	if sp.scheduler != nil {
		if err := sp.scheduler.Stop(ctx); err != nil {
			sp.logger.Error("Scheduler did not stop in time", zap.Error(err))
		}
	}

	// Drain in-flight sample hooks first.
	if sp.hooks != nil {
		sp.hooks.Wait()
	}

	if sp.kafkaManager != nil {
		sp.logger.Info("Stopping Kafka manager")
		if err := sp.kafkaManager.Stop(); err != nil {
			sp.logger.Error("Failed to stop Kafka manager", zap.Error(err))
		}
	}

	if sp.notificationService != nil {
		sp.notificationService.Shutdown()
	}

	if sp.transport != nil {
		if err := sp.transport.Close(); err != nil {
			sp.logger.Error("Failed to close command transport", zap.Error(err))
		}
	}

	sp.logger.Info("Services shut down successfully")
	return nil
}

// GetScheduler returns the task scheduler
func (sp *ServiceProvider) GetScheduler() *scheduler.Scheduler {
	return sp.scheduler
}

// GetKafkaManager returns the Kafka manager, nil when Kafka is disabled
func (sp *ServiceProvider) GetKafkaManager() *kafka.Manager {
	return sp.kafkaManager
}

// GetNotificationService returns the notification service
func (sp *ServiceProvider) GetNotificationService() *NotificationService {
	return sp.notificationService
}

// GetTelemetryService returns the telemetry service
func (sp *ServiceProvider) GetTelemetryService() *TelemetryService {
	return sp.telemetryService
}

// GetTimeFrameService returns the time frame service
func (sp *ServiceProvider) GetTimeFrameService() *TimeFrameService {
	return sp.timeFrameService
}

// GetDeviceService returns the device service
func (sp *ServiceProvider) GetDeviceService() *DeviceService {
	return sp.deviceService
}

// GetUserService returns the user service
func (sp *ServiceProvider) GetUserService() *UserService {
	return sp.userService
}

// GetSampleHooks returns the post-ingest hooks
func (sp *ServiceProvider) GetSampleHooks() *SampleHooks {
	return sp.hooks
}
