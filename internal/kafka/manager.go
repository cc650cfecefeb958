package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Topic constants for the application
const (
	TopicSamples = "samples"
	TopicAlarms  = "alarms"
)

// ClientID identifies this service to the brokers
const ClientID = "voltwatch"

// SampleMessage is a device reading published to TopicSamples
type SampleMessage struct {
	DeviceID    uint     `json:"deviceId"`
	Key         string   `json:"key"`
	Current     float64  `json:"current"`
	Voltage     float64  `json:"voltage"`
	Power       *float64 `json:"power,omitempty"`
	PowerFactor *float64 `json:"powerFactor,omitempty"`
	CreatedAt   *int64   `json:"createdAt,omitempty"`
}

// NotificationEvent is a user notification published to TopicAlarms
type NotificationEvent struct {
	UserID    uint        `json:"userId"`
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

const sampleSchema = "sample"

var sampleValidator = newSampleValidator()

func newSampleValidator() *utils.JSONSchemaValidator {
	schema, err := utils.NewJSONSchemaBuilder("SampleMessage").
		AddProperty("deviceId", "integer", true, map[string]interface{}{"minimum": 1}).
		AddStringProperty("key", false).
		AddNumberProperty("current", true).
		AddNumberProperty("voltage", true).
		AddNumberProperty("power", false).
		AddNumberProperty("powerFactor", false).
		AddIntegerProperty("createdAt", false).
		Build()
	if err != nil {
		panic(err)
	}

	v := utils.NewJSONSchemaValidator()
	if err := v.LoadSchema(sampleSchema, schema); err != nil {
		panic(err)
	}
	return v
}

// DecodeSample validates and parses a TopicSamples message
func DecodeSample(msg *kafka.Message) (SampleMessage, error) {
	if err := sampleValidator.Validate(sampleSchema, msg.Value); err != nil {
		return SampleMessage{}, fmt.Errorf("invalid sample: %w", err)
	}

	var sample SampleMessage
	if err := json.Unmarshal(msg.Value, &sample); err != nil {
		return SampleMessage{}, fmt.Errorf("%w: failed to unmarshal sample: %v", utils.ErrValidation, err)
	}
	if sample.DeviceID == 0 {
		return SampleMessage{}, fmt.Errorf("%w: sample without deviceId", utils.ErrValidation)
	}
	return sample, nil
}

// Manager coordinates Kafka producers and consumers
type Manager struct {
	config           *config.KafkaConfig
	logger           *utils.Logger
	mainProducer     *Producer
	consumers        map[string]*Consumer
	consumerCtx      context.Context
	consumerCancel   context.CancelFunc
	wg               sync.WaitGroup
	mu               sync.Mutex
	isRunning        bool
	messageProcessed chan struct{}
}

// NewManager creates a new Kafka manager
func NewManager(cfg *config.KafkaConfig, logger *utils.Logger) (*Manager, error) {
	kafkaLogger := logger.Named("kafka_manager")

	// The same producer serves regular and dead letter traffic
	mainProducer, err := NewProducer(cfg, ClientID, kafkaLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create main producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:           cfg,
		logger:           kafkaLogger,
		mainProducer:     mainProducer,
		consumers:        make(map[string]*Consumer),
		consumerCtx:      ctx,
		consumerCancel:   cancel,
		messageProcessed: make(chan struct{}, 100),
	}, nil
}

// Start initializes and starts all registered consumers
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("kafka manager is already running")
	}

	for name, consumer := range m.consumers {
		m.logger.Info("Starting consumer", zap.String("name", name))
		if err := consumer.Start(m.consumerCtx); err != nil {
			m.logger.Error("Failed to start consumer",
				zap.String("name", name),
				zap.Error(err))
			m.stopAllConsumers()
			return fmt.Errorf("failed to start consumer %s: %w", name, err)
		}
	}

	m.wg.Add(1)
	go m.monitorProcessing()

	m.isRunning = true
	m.logger.Info("Kafka manager started")
	return nil
}

// AddConsumer creates and registers a consumer with specific handlers
func (m *Manager) AddConsumer(name string, handlers map[string][]MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("cannot add consumer while manager is running")
	}

	if _, exists := m.consumers[name]; exists {
		return fmt.Errorf("consumer with name %s already exists", name)
	}

	consumer, err := NewConsumer(m.config, m.logger, m.mainProducer)
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", name, err)
	}

	topics := make([]string, 0, len(handlers))
	for topic, topicHandlers := range handlers {
		topics = append(topics, topic)
		for _, handler := range topicHandlers {
			consumer.RegisterHandler(topic, m.wrapHandler(handler))
		}
	}

	m.consumers[name] = consumer
	m.logger.Info("Added consumer",
		zap.String("name", name),
		zap.Strings("topics", topics))

	return nil
}

// wrapHandler wraps a message handler to signal when processing is complete
func (m *Manager) wrapHandler(handler MessageHandler) MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		defer func() {
			select {
			case m.messageProcessed <- struct{}{}:
			default:
			}
		}()

		return handler(ctx, msg)
	}
}

// ProduceMessage sends a message to the specified topic
func (m *Manager) ProduceMessage(topic string, key string, value interface{}, headers map[string]string) error {
	return m.mainProducer.Produce(topic, &Message{
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
		Headers:   headers,
	})
}

// ProduceSample publishes a device reading keyed by device id
func (m *Manager) ProduceSample(sample SampleMessage) error {
	return m.ProduceMessage(TopicSamples, strconv.FormatUint(uint64(sample.DeviceID), 10), sample, nil)
}

// Notifier returns a publisher that forwards user notifications to TopicAlarms
func (m *Manager) Notifier() *EventPublisher {
	return NewEventPublisher(m.mainProducer, m.logger)
}

// RegisterSampleHandler registers a consumer for device readings
func (m *Manager) RegisterSampleHandler(name string, handler func(ctx context.Context, sample SampleMessage) error) error {
	msgHandler := func(ctx context.Context, msg *kafka.Message) error {
		sample, err := DecodeSample(msg)
		if err != nil {
			return err
		}
		return handler(ctx, sample)
	}

	return m.AddConsumer(
		fmt.Sprintf("%s-samples", name),
		map[string][]MessageHandler{
			TopicSamples: {msgHandler},
		},
	)
}

// monitorProcessing tracks and logs message processing metrics
func (m *Manager) monitorProcessing() {
	defer m.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	messageCount := 0

	for {
		select {
		case <-m.consumerCtx.Done():
			m.logger.Info("Message processing monitor stopped")
			return

		case <-m.messageProcessed:
			messageCount++

		case <-ticker.C:
			if messageCount > 0 {
				m.logger.Info("Message processing statistics",
					zap.Int("processed_messages", messageCount),
					zap.String("interval", "1m"))
				messageCount = 0
			}
		}
	}
}

// stopAllConsumers stops all consumers
func (m *Manager) stopAllConsumers() {
	for name, consumer := range m.consumers {
		m.logger.Info("Stopping consumer", zap.String("name", name))
		consumer.Stop()
	}
}

// Stop stops the Kafka manager, its consumers and the producer
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consumerCancel()

	if m.isRunning {
		m.stopAllConsumers()
		m.wg.Wait()
	}

	m.mainProducer.Close()

	m.isRunning = false
	m.logger.Info("Kafka manager stopped")
	return nil
}

// IsRunning returns whether the Kafka manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// EventPublisher forwards user notifications to Kafka so other consumers
// (mobile push, mail) can pick them up
type EventPublisher struct {
	producer publisher
	logger   *utils.Logger
	now      func() time.Time
}

// NewEventPublisher creates a publisher on top of producer
func NewEventPublisher(producer publisher, logger *utils.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		logger:   logger.Named("event_publisher"),
		now:      time.Now,
	}
}

// Send publishes one notification keyed by user id. Failures are logged only.
func (p *EventPublisher) Send(userID uint, event string, payload interface{}) {
	msg := &Message{
		Key: strconv.FormatUint(uint64(userID), 10),
		Value: NotificationEvent{
			UserID:    userID,
			Event:     event,
			Payload:   payload,
			Timestamp: p.now().UnixMilli(),
		},
		Timestamp: p.now(),
		Headers:   map[string]string{"event": event},
	}
	if err := p.producer.Produce(TopicAlarms, msg); err != nil {
		p.logger.Error("Failed to publish notification",
			zap.Uint("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
	}
}
