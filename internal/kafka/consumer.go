package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// MessageHandler is a function that processes a Kafka message
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// publisher is the part of Producer used by consumers and notifiers
type publisher interface {
	Produce(topic string, message *Message) error
}

// Consumer provides functionality to consume messages from Kafka topics
type Consumer struct {
	consumer    *kafka.Consumer
	logger      *utils.Logger
	handlers    map[string][]MessageHandler
	dlqProducer publisher
	done        chan struct{}
	cancel      context.CancelFunc
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, logger *utils.Logger, dlqProducer *Producer) (*Consumer, error) {
	kafkaConfig, err := clientConfig(cfg, kafka.ConfigMap{
		"group.id":                cfg.ConsumerGroup,
		"auto.offset.reset":       "earliest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, err
	}

	consumer, err := kafka.NewConsumer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	c := newConsumer(logger)
	c.consumer = consumer
	if dlqProducer != nil {
		c.dlqProducer = dlqProducer
	}
	return c, nil
}

func newConsumer(logger *utils.Logger) *Consumer {
	return &Consumer{
		logger:   logger.Named("kafka_consumer"),
		handlers: make(map[string][]MessageHandler),
	}
}

// RegisterHandler registers a message handler for a specific topic
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = append(c.handlers[topic], handler)
	c.logger.Info("Registered handler for topic", zap.String("topic", topic))
}

// Start subscribes to the registered topics and consumes until ctx is done
// or Stop is called
func (c *Consumer) Start(ctx context.Context) error {
	if c.done != nil {
		return fmt.Errorf("consumer is already running")
	}

	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics registered")
	}

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}
	c.logger.Info("Subscribed to topics", zap.Strings("topics", topics))

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consumeLoop(loopCtx)

	return nil
}

// consumeLoop runs the main consumption loop
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer close(c.done)
	c.logger.Info("Starting Kafka consumer loop")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer")
			_ = c.consumer.Close()
			return
		default:
		}

		msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kafkaErr kafka.Error
			if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		c.processMessage(ctx, msg)
	}
}

// processMessage processes a Kafka message using registered handlers. A
// failing message is forwarded to <topic>.dlq.
func (c *Consumer) processMessage(ctx context.Context, msg *kafka.Message) {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return
	}

	topic := *msg.TopicPartition.Topic
	handlers, ok := c.handlers[topic]
	if !ok || len(handlers) == 0 {
		c.logger.Warn("No handlers registered for topic", zap.String("topic", topic))
		return
	}

	c.logger.Debug("Processing message",
		zap.String("topic", topic),
		zap.Int32("partition", msg.TopicPartition.Partition),
		zap.Int64("offset", int64(msg.TopicPartition.Offset)),
	)

	for i, handler := range handlers {
		err := handler(ctx, msg)
		if err == nil {
			continue
		}

		c.logger.Error("Handler failed to process message",
			zap.String("topic", topic),
			zap.Int("handler_index", i),
			zap.Error(err),
		)

		if c.dlqProducer == nil {
			continue
		}

		dlqTopic := topic + ".dlq"
		dlqMessage := &Message{
			Key:       string(msg.Key),
			Value:     msg.Value,
			Timestamp: time.Now(),
			Headers: map[string]string{
				"error":          err.Error(),
				"original_topic": topic,
			},
		}
		if err := c.dlqProducer.Produce(dlqTopic, dlqMessage); err != nil {
			c.logger.Error("Failed to send message to DLQ",
				zap.String("dlq_topic", dlqTopic),
				zap.Error(err),
			)
		}
	}
}

// Stop stops the consumer and waits for the loop to exit
func (c *Consumer) Stop() {
	if c.done == nil {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Info("Kafka consumer stopped")
}
