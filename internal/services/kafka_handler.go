package services

import (
	"context"
	"fmt"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/kafka"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// SampleIngester is the part of TelemetryService used by stream consumers
type SampleIngester interface {
	Ingest(ctx context.Context, deviceID uint, r Reading) (*models.Sample, error)
}

// DeviceAuthenticator checks a device's key
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, id uint, key string) (*models.Device, error)
}

// KafkaHandler ingests device readings published to the samples topic
type KafkaHandler struct {
	logger    *utils.Logger
	devices   DeviceAuthenticator
	telemetry SampleIngester
}

// NewKafkaHandler creates a new Kafka message handler service
func NewKafkaHandler(devices DeviceAuthenticator, telemetry SampleIngester, logger *utils.Logger) *KafkaHandler {
	return &KafkaHandler{
		logger:    logger.Named("kafka_handler"),
		devices:   devices,
		telemetry: telemetry,
	}
}

// Initialize registers the samples consumer on manager
func (h *KafkaHandler) Initialize(manager *kafka.Manager) error {
	if err := manager.RegisterSampleHandler("telemetry", h.HandleSample); err != nil {
		return fmt.Errorf("failed to register sample handler: %w", err)
	}
	return nil
}

// HandleSample authenticates the publishing device and stores its reading.
// Errors send the message to the dead letter topic.
func (h *KafkaHandler) HandleSample(ctx context.Context, msg kafka.SampleMessage) error {
	if _, err := h.devices.Authenticate(ctx, msg.DeviceID, msg.Key); err != nil {
		h.logger.Warn("Rejected sample from unauthenticated device",
			zap.Uint("device_id", msg.DeviceID),
			zap.Error(err))
		return err
	}

	sample, err := h.telemetry.Ingest(ctx, msg.DeviceID, Reading{
		Current:     msg.Current,
		Voltage:     msg.Voltage,
		Power:       msg.Power,
		PowerFactor: msg.PowerFactor,
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to ingest sample for device %d: %w", msg.DeviceID, err)
	}

	h.logger.Debug("Stored sample from stream",
		zap.Uint("device_id", sample.DeviceID),
		zap.Int64("created_at", sample.CreatedAt))
	return nil
}
